package cli

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/matsecom/pkg/api"
	"github.com/platinummonkey/matsecom/pkg/billing"
	"github.com/platinummonkey/matsecom/pkg/catalog"
	"github.com/platinummonkey/matsecom/pkg/observability"
	"github.com/platinummonkey/matsecom/pkg/registry"
	"github.com/platinummonkey/matsecom/pkg/session"
	"github.com/platinummonkey/matsecom/pkg/storage/memory"
	"github.com/platinummonkey/matsecom/pkg/throughput"
)

// newTestServer runs the real API over an in-memory store.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	cat := catalog.NewStore(c)
	store := memory.New()
	logger := observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{})

	srv := httptest.NewServer(api.NewServer(api.Dependencies{
		Subscribers: registry.NewService(store, cat, logger),
		Simulator:   session.NewSimulator(store, cat, throughput.Maximum(), logger),
		Invoicer:    billing.NewGenerator(store, cat, logger),
		Usage:       store,
		Catalog:     cat,
		Logger:      logger,
	}))
	t.Cleanup(srv.Close)
	return srv
}

// run executes matsecomctl against server and returns stdout.
func run(t *testing.T, server string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--server", server}, args...))
	err := root.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, server string, args ...string) string {
	t.Helper()
	out, err := run(t, server, args...)
	require.NoError(t, err, out)
	return out
}

func createSubscriber(t *testing.T, server, imsi, terminal, tier string) {
	t.Helper()
	mustRun(t, server, "subscribers", "create",
		"--forename", "Erika", "--surname", "Mustermann",
		"--imsi", imsi, "--terminal", terminal, "--subscription", tier)
}

func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand()
	assert.Equal(t, "matsecomctl", root.Name())

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"subscribers", "simulate", "sessions", "invoices", "catalog"} {
		assert.Contains(t, names, want)
	}

	for _, name := range []string{"server", "output", "timeout"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}
}

func TestRootCommand_Validation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		args   []string
		errMsg string
	}{
		{name: "unknown output", args: []string{"-o", "yaml", "subscribers", "list"}, errMsg: `unknown output format "yaml"`},
		{name: "invalid id", args: []string{"subscribers", "get", "abc"}, errMsg: `invalid id "abc"`},
		{name: "zero id", args: []string{"invoices", "create", "0"}, errMsg: `invalid id "0"`},
		{name: "missing flags", args: []string{"simulate", "--subscriber", "1"}, errMsg: "required flag"},
		{name: "paid and unpaid", args: []string{"sessions", "--paid", "--unpaid"}, errMsg: "mutually exclusive"},
		{name: "missing import file", args: []string{"subscribers", "import", filepath.Join(t.TempDir(), "none.csv")}, errMsg: "failed to open"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, srv.URL, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSubscribersCommands(t *testing.T) {
	srv := newTestServer(t)
	createSubscriber(t, srv.URL, "262011234567890", "PhairPhone", "GS")

	out := mustRun(t, srv.URL, "subscribers", "list")
	assert.Contains(t, out, "IMSI")
	assert.Contains(t, out, "262011234567890")
	assert.Contains(t, out, "Erika Mustermann")

	out = mustRun(t, srv.URL, "subscribers", "get", "1", "-o", "json")
	assert.Contains(t, out, `"imsi": "262011234567890"`)
	assert.Contains(t, out, `"subscription_type": "GS"`)

	t.Run("not found", func(t *testing.T) {
		_, err := run(t, srv.URL, "subscribers", "get", "999")
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr), "got %v", err)
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
	})

	t.Run("duplicate imsi", func(t *testing.T) {
		_, err := run(t, srv.URL, "subscribers", "create",
			"--forename", "Max", "--surname", "Mustermann",
			"--imsi", "262011234567890", "--terminal", "PhairPhone", "--subscription", "GM")
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr), "got %v", err)
		assert.Equal(t, http.StatusConflict, apiErr.Status)
	})

	t.Run("import and export", func(t *testing.T) {
		csv := strings.Join(registry.Header, ",") + "\n" +
			"Max,Mustermann,262029876543210,Samsung S42plus,GL\n" +
			"Erika,Mustermann,262011234567890,PhairPhone,GS\n"
		path := filepath.Join(t.TempDir(), "subscribers.csv")
		require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

		out := mustRun(t, srv.URL, "subscribers", "import", path)
		assert.Equal(t, "Imported 1 subscribers, skipped 1 already registered: 262011234567890\n", out)

		exportPath := filepath.Join(t.TempDir(), "export.csv")
		mustRun(t, srv.URL, "subscribers", "export", exportPath)
		exported, err := os.ReadFile(exportPath)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(exported), strings.Join(registry.Header, ",")+"\n"))
		assert.Contains(t, string(exported), "262029876543210")
		assert.Contains(t, string(exported), "262011234567890")
	})

	t.Run("import from stdin", func(t *testing.T) {
		root := NewRootCommand()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetErr(&bytes.Buffer{})
		root.SetIn(strings.NewReader(strings.Join(registry.Header, ",") + "\nAnna,Schmidt,262031111111111,PhairPhone,GM\n"))
		root.SetArgs([]string{"--server", srv.URL, "-o", "json", "subscribers", "import", "-"})
		require.NoError(t, root.Execute())
		assert.Contains(t, out.String(), `"created"`)
		assert.Contains(t, out.String(), "262031111111111")
	})

	out = mustRun(t, srv.URL, "subscribers", "delete", "1")
	assert.Equal(t, "Deleted subscriber 1\n", out)
	_, err := run(t, srv.URL, "subscribers", "get", "1")
	assert.Error(t, err)
}

func TestSimulateSessionsAndInvoices(t *testing.T) {
	srv := newTestServer(t)
	createSubscriber(t, srv.URL, "262011234567890", "PhairPhone", "GS")

	out := mustRun(t, srv.URL, "simulate", "--subscriber", "1", "--service", "VC", "--duration", "120")
	assert.Contains(t, out, "Outcome: OK")
	assert.Contains(t, out, "VC")

	out = mustRun(t, srv.URL, "simulate", "--subscriber", "1", "--service", "BN", "--duration", "10")
	assert.Contains(t, out, "Technology: 3G (good), throughput 10")

	t.Run("refused session", func(t *testing.T) {
		_, err := run(t, srv.URL, "simulate", "--subscriber", "1", "--service", "AV", "--duration", "10")
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr), "got %v", err)
		assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
		assert.Equal(t, string(session.InsufficientBandwidth), apiErr.Response.Code)
		assert.Equal(t, "10", apiErr.Response.Details["throughput"])
	})

	out = mustRun(t, srv.URL, "sessions", "--subscriber", "1", "--unpaid", "-o", "json")
	assert.Equal(t, 2, strings.Count(out, `"subscriber_id": 1`))

	out = mustRun(t, srv.URL, "invoices", "create", "1")
	assert.Contains(t, out, "CHARGES")
	// 120 call seconds bill 3 minutes at 8 cents on top of the 800 basic fee.
	assert.Contains(t, out, "8.24")

	out = mustRun(t, srv.URL, "sessions", "--unpaid", "-o", "json")
	assert.NotContains(t, out, `"subscriber_id"`)
	out = mustRun(t, srv.URL, "sessions", "--paid")
	assert.Equal(t, 2, strings.Count(out, "true"))

	out = mustRun(t, srv.URL, "invoices", "list", "1", "-o", "json")
	assert.Contains(t, out, `"charges": 824`)
	assert.Contains(t, out, `"session_count": 2`)

	out = mustRun(t, srv.URL, "invoices", "get", "1")
	assert.Contains(t, out, "8.24")
}

func TestCatalogCommand(t *testing.T) {
	srv := newTestServer(t)

	out := mustRun(t, srv.URL, "catalog")
	assert.Contains(t, out, "GreenMobil S")
	assert.Contains(t, out, "22.00")
	assert.Contains(t, out, "Samsung S42plus")
	assert.Contains(t, out, "Adaptive HD video")

	out = mustRun(t, srv.URL, "catalog", "-o", "json")
	assert.Contains(t, out, `"subscriptions"`)
}

func TestClient_UnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := run(t, url, "subscribers", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to call GET /subscribers")
}

func TestAPIError(t *testing.T) {
	e := &APIError{Status: 422}
	e.Response.Code = "INSUFFICIENT_BANDWIDTH"
	e.Response.Error = "not enough bandwidth"
	assert.Equal(t, "INSUFFICIENT_BANDWIDTH: not enough bandwidth (HTTP 422)", e.Error())

	plain := &APIError{Status: 500}
	plain.Response.Error = "internal server error"
	assert.Equal(t, "internal server error (HTTP 500)", plain.Error())
}

func TestFormatCents(t *testing.T) {
	tests := map[int64]string{0: "0.00", 5: "0.05", 824: "8.24", 2200: "22.00", -150: "-1.50"}
	for cents, want := range tests {
		assert.Equal(t, want, formatCents(cents))
	}
}
