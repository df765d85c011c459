package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/policybot/internal/configuration"
)

const policyPage = `<html><body>
<h1 class="et_pb_module_header">Leave of Absence</h1>
<div class="et_pb_section et_pb_section_1">
  <h2>Overview</h2>
  <p>Students must apply before the semester deadline.</p>
  <li>Submit the application form.</li>
  <script>ignored()</script>
</div>
</body></html>`

func testScraper(t *testing.T, baseURL string) (*Scraper, string) {
	t.Helper()
	outDir := t.TempDir()
	return New(configuration.ScraperConfig{
		BaseURL: baseURL,
		OutDir:  outDir,
		Timeout: 5 * time.Second,
	}, nil, nil), outDir
}

func TestRunExtractsAndWritesPolicies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/policy101/":
			w.Write([]byte(policyPage))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s, outDir := testScraper(t, srv.URL)
	saved, err := s.Run(context.Background(), []string{"101", "999"})
	require.NoError(t, err)
	assert.Equal(t, 1, saved)

	raw, err := os.ReadFile(filepath.Join(outDir, "policy_101.txt"))
	require.NoError(t, err)
	content := string(raw)

	assert.Contains(t, content, "Policy 101: Leave of Absence")
	assert.Contains(t, content, "Overview")
	assert.Contains(t, content, "Students must apply before the semester deadline.")
	assert.Contains(t, content, "Submit the application form.")
	assert.NotContains(t, content, "ignored()")
}

func TestRunSkipsPagesWithoutPolicyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html><body><p>Not a policy page.</p></body></html>"))
	}))
	defer srv.Close()

	s, outDir := testScraper(t, srv.URL)
	saved, err := s.Run(context.Background(), []string{"101"})
	require.NoError(t, err)
	assert.Zero(t, saved)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPolicyIDs(t *testing.T) {
	ids := PolicyIDs()

	assert.Contains(t, ids, "101")
	assert.Contains(t, ids, "126")
	assert.Contains(t, ids, "708")
	assert.Contains(t, ids, "107-CAN")
	assert.NotContains(t, ids, "707")
	assert.NotContains(t, ids, "127")
}
