package supervisor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Systemctl must satisfy the Supervisor contract.
var _ Supervisor = (*Systemctl)(nil)

// TestNewSystemctl is a smoke test; real systemctl behavior is covered by
// the fakes-driven orchestrator tests, since test machines may not run systemd.
func TestNewSystemctl(t *testing.T) {
	t.Parallel()
	require.NotNil(t, NewSystemctl())
}
