package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoleAndStatusValid(t *testing.T) {
	t.Parallel()

	require.True(t, RoleAdmin.Valid())
	require.False(t, Role("root").Valid())
	require.True(t, PostStatusArchived.Valid())
	require.False(t, PostStatus("hidden").Valid())
}

func TestUser_FullNameAndSummary(t *testing.T) {
	t.Parallel()

	u := &User{ID: "1", Username: "alice", FirstName: "Alice", LastName: "Martin", Avatar: "https://a"}
	require.Equal(t, "Alice Martin", u.FullName())

	s := u.Summary()
	require.Equal(t, "Alice Martin", s.FullName)
	require.Equal(t, "alice", s.Username)
}

func TestNewPage_TotalPagesAndDefaults(t *testing.T) {
	t.Parallel()

	p := NewPage[int](nil, ListParams{Page: 0, Limit: 10}, 21)
	require.Equal(t, int64(3), p.TotalPages)
	require.Equal(t, int64(1), p.Page)
	require.NotNil(t, p.Data)

	require.Equal(t, int64(20), ListParams{Page: 3, Limit: 10}.Skip())
	require.Equal(t, int64(0), ListParams{Page: 1, Limit: 10}.Skip())
}
