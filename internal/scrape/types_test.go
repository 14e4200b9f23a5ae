package scrape

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResultJSONOmitsEmptyFields(t *testing.T) {
	t.Parallel()

	out, err := json.Marshal(Result{Identifier: "ABC-1", Price: Float(49.95)})
	require.NoError(t, err)
	require.JSONEq(t, `{"identifier":"ABC-1","price":49.95}`, string(out))
}

func TestResultJSONKeepsZeroPrice(t *testing.T) {
	t.Parallel()

	// A present-but-zero price is distinct from an absent one.
	out, err := json.Marshal(Result{Identifier: "ABC-1", Price: Float(0)})
	require.NoError(t, err)
	require.Contains(t, string(out), `"price":0`)
}

func TestPrimaryImage(t *testing.T) {
	t.Parallel()

	r := &Result{}
	require.Empty(t, r.PrimaryImage())

	r.Images = []string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"}
	require.Equal(t, "https://cdn.example.com/a.jpg", r.PrimaryImage())
}
