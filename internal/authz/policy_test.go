package authz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllowList(t *testing.T) {
	p := NewAllowList([]string{" Calvin@Example.com", "", "ops@example.com"})

	require.True(t, p.IsAdmin("calvin@example.com"))
	require.True(t, p.IsAdmin("  CALVIN@example.COM "))
	require.True(t, p.IsAdmin("ops@example.com"))
	require.False(t, p.IsAdmin("someone@example.com"))
	require.False(t, p.IsAdmin(""))

	var nilList *AllowList
	require.False(t, nilList.IsAdmin("ops@example.com"))
}
