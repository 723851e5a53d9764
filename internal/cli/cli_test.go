package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tixly/tixly/internal/config"
	"github.com/tixly/tixly/internal/wallet"
	apperrors "github.com/tixly/tixly/pkg/errors"
	"github.com/tixly/tixly/pkg/types"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()

	var out bytes.Buffer
	root := NewRootCommand(Options{
		In:  strings.NewReader(stdin),
		Out: &out,
		Err: io.Discard,
		LoadConfig: func(string) (*config.Config, error) {
			cfg := config.Default()
			cfg.Storage.Path = dir
			return cfg, nil
		},
	})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    types.EventCategory
		wantErr bool
	}{
		{"music", types.CategoryMusic, false},
		{"Technology", types.CategoryTechnology, false},
		{"5", types.CategoryOther, false},
		{"6", 0, true},
		{"jazz", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseCategory(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEventsCommands(t *testing.T) {
	t.Run("featured table", func(t *testing.T) {
		out, err := run(t, "", "events")
		require.NoError(t, err)
		assert.Contains(t, out, "Summer Music Festival")
		assert.Contains(t, out, "0.05 ETH")
	})

	t.Run("category as json", func(t *testing.T) {
		out, err := run(t, "", "events", "--category", "technology", "--json")
		require.NoError(t, err)
		var events []types.Event
		require.NoError(t, json.Unmarshal([]byte(out), &events))
		require.NotEmpty(t, events)
		for _, e := range events {
			assert.Equal(t, types.CategoryTechnology, e.Category)
		}
	})

	t.Run("single event", func(t *testing.T) {
		out, err := run(t, "", "event", "1")
		require.NoError(t, err)
		assert.Contains(t, out, "Central Park, New York")
	})

	t.Run("unknown event", func(t *testing.T) {
		_, err := run(t, "", "event", "99")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
	})

	t.Run("bad category", func(t *testing.T) {
		_, err := run(t, "", "events", "--category", "jazz")
		assert.Error(t, err)
	})
}

func TestSessionCommands(t *testing.T) {
	t.Run("status starts disconnected", func(t *testing.T) {
		out, err := run(t, "", "status")
		require.NoError(t, err)
		assert.Contains(t, out, "disconnected")
	})

	t.Run("connect mock", func(t *testing.T) {
		out, err := run(t, "", "connect", "mock", "--json")
		require.NoError(t, err)
		var s types.Session
		require.NoError(t, json.Unmarshal([]byte(out), &s))
		assert.Equal(t, types.StatusConnected, s.Status)
		assert.Equal(t, wallet.MockAddress.Hex(), s.Address)
		assert.True(t, s.ReadOnly)
	})

	t.Run("unknown strategy", func(t *testing.T) {
		_, err := run(t, "", "connect", "ledger")
		assert.Error(t, err)
	})

	t.Run("import without a chain", func(t *testing.T) {
		_, err := run(t, "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80\n", "import")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNetworkError))
	})

	t.Run("import needs input", func(t *testing.T) {
		_, err := run(t, "", "import", "--mnemonic")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot be empty")
	})

	t.Run("balance needs a session", func(t *testing.T) {
		_, err := run(t, "", "balance")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotConnected))
	})
}

func TestSessionScopedCommands(t *testing.T) {
	for _, args := range [][]string{
		{"tickets"},
		{"buy", "1", "2"},
		{"favorite", "1"},
		{"unfavorite", "1"},
	} {
		t.Run(args[0], func(t *testing.T) {
			_, err := run(t, "", args...)
			assert.True(t, errors.Is(err, apperrors.ErrNotConnected), "got %v", err)
		})
	}

	t.Run("buy rejects a bad quantity", func(t *testing.T) {
		_, err := run(t, "", "buy", "1", "two")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quantity")
	})

	t.Run("confirm rejects a bad hash", func(t *testing.T) {
		_, err := run(t, "", "confirm", "0x1234")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "32 bytes")
	})
}

func TestProfileCommands(t *testing.T) {
	out, err := run(t, "", "profile")
	require.NoError(t, err)
	assert.Contains(t, out, "Not registered.")

	_, err = run(t, "", "profile", "register", "--name", "Ada", "--email", "ada@example.com")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotConnected))

	_, err = run(t, "", "profile", "update", "--name", "Grace")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))

	out, err = run(t, "", "profile", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out.")
}
