// tree собирает плоский список комментариев в дерево ответов.
package tree

import "github.com/pribylovaa/go-content-platform/internal/models"

// Node — комментарий с вложенными ответами.
type Node struct {
	models.Comment
	Replies []*Node `json:"replies"`
}

// Build строит лес комментариев за O(n).
//   - корни и ответы сохраняют порядок входного списка;
//   - комментарий с отсутствующим во входе родителем становится корнем;
//   - самоссылка или цикл родителей разрывается: первый достигнутый член цикла
//     (в порядке входа) становится корнем, так что ни один комментарий не теряется.
//
// Повторяющиеся ID: учитывается первое вхождение, остальные становятся
// самостоятельными узлами без детей.
func Build(comments []models.Comment) []*Node {
	n := len(comments)
	if n == 0 {
		return []*Node{}
	}

	nodes := make([]Node, n)
	index := make(map[string]int, n)
	for i := range comments {
		nodes[i] = Node{Comment: comments[i], Replies: []*Node{}}
		if _, dup := index[comments[i].ID]; !dup {
			index[comments[i].ID] = i
		}
	}

	// parent[i] = индекс родителя либо -1 для корня.
	parent := make([]int, n)
	for i := range nodes {
		parent[i] = -1
		pid := nodes[i].ParentID
		if pid == "" {
			continue
		}

		if j, ok := index[pid]; ok && index[nodes[i].ID] == i {
			parent[i] = j
		}
	}

	breakCycles(parent)

	roots := make([]*Node, 0)
	for i := range nodes {
		if p := parent[i]; p >= 0 {
			nodes[p].Replies = append(nodes[p].Replies, &nodes[i])
		} else {
			roots = append(roots, &nodes[i])
		}
	}

	return roots
}

// breakCycles обходит цепочки родителей в порядке входа и обнуляет ссылку
// у первого узла цикла, на который наткнулся обход.
func breakCycles(parent []int) {
	const (
		unvisited = iota
		onPath
		done
	)

	state := make([]uint8, len(parent))
	path := make([]int, 0, 8)

	for start := range parent {
		if state[start] != unvisited {
			continue
		}

		path = path[:0]
		cur := start
		for cur >= 0 && state[cur] == unvisited {
			state[cur] = onPath
			path = append(path, cur)
			cur = parent[cur]
		}

		// Вернулись в узел текущего пути — цикл; его первый член на пути становится корнем.
		if cur >= 0 && state[cur] == onPath {
			parent[cur] = -1
		}

		for _, i := range path {
			state[i] = done
		}
	}
}
