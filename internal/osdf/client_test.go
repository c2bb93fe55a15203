package osdf_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"pxsubmit/internal/osdf"
	"pxsubmit/internal/services"
	"pxsubmit/internal/study"
)

type noopLimiter struct{}

func (noopLimiter) Wait(context.Context) error   { return nil }
func (noopLimiter) Allow() bool                  { return true }
func (noopLimiter) Reserve() time.Duration       { return 0 }
func (noopLimiter) RetryAfter(int) time.Duration { return 0 }
func (noopLimiter) Reset()                       {}

var oqlPattern = regexp.MustCompile(`^"([^"]+)"\[node_type\] && "([^"]+)"\[linkage\.([a-z_]+)\]$`)

const pageSize = 2

// fakeOSDF serves a fixed node set. Query results are paged pageSize at a time.
type fakeOSDF struct {
	nodes    []osdf.Node
	requests atomic.Int32
	failures atomic.Int32
}

func (f *fakeOSDF) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)
	if user, pass, ok := r.BasicAuth(); !ok || user != "dcc" || pass != "pw" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if f.failures.Load() > 0 {
		f.failures.Add(-1)
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	switch {
	case r.URL.Path == "/info":
		_ = json.NewEncoder(w).Encode(osdf.Info{Title: "OSDF", APIVersion: "1.0"})
	case strings.HasPrefix(r.URL.Path, "/nodes/oql/"):
		rest := strings.TrimPrefix(r.URL.Path, "/nodes/oql/test")
		page := 1
		if strings.HasPrefix(rest, "/page/") {
			page, _ = strconv.Atoi(strings.TrimPrefix(rest, "/page/"))
		}
		body, _ := io.ReadAll(r.Body)
		m := oqlPattern.FindStringSubmatch(string(body))
		if m == nil {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		var matches []osdf.Node
		for _, n := range f.nodes {
			if n.NodeType == m[1] && slices.Contains(n.Linkage[m[3]], m[2]) {
				matches = append(matches, n)
			}
		}
		start := min((page-1)*pageSize, len(matches))
		end := min(start+pageSize, len(matches))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"search_result_total": len(matches),
			"result_count":        end - start,
			"page":                page,
			"results":             matches[start:end],
		})
	case strings.HasPrefix(r.URL.Path, "/nodes/"):
		id := strings.TrimPrefix(r.URL.Path, "/nodes/")
		for _, n := range f.nodes {
			if n.ID == id {
				_ = json.NewEncoder(w).Encode(n)
				return
			}
		}
		http.NotFound(w, r)
	default:
		http.NotFound(w, r)
	}
}

func node(id, nodeType, link, parent string, meta map[string]any) osdf.Node {
	n := osdf.Node{ID: id, NodeType: nodeType, Meta: meta}
	if link != "" {
		n.Linkage = map[string][]string{link: {parent}}
	}
	return n
}

func newClient(t *testing.T, f *fakeOSDF, user string) *osdf.Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return osdf.NewClient(osdf.Config{
		BaseURL:    srv.URL + "/",
		Namespace:  "test",
		Username:   user,
		Password:   "pw",
		MaxRetries: 2,
	}, osdf.WithLimiter(noopLimiter{}))
}

func TestLinkageQuery(t *testing.T) {
	got := osdf.LinkageQuery("visit", "by", "subj-1")
	want := `"visit"[node_type] && "subj-1"[linkage.by]`
	if got != want {
		t.Fatalf("LinkageQuery = %q, want %q", got, want)
	}
}

func TestQueryFollowsPages(t *testing.T) {
	f := &fakeOSDF{}
	for _, id := range []string{"s1", "s2", "s3", "s4", "s5"} {
		f.nodes = append(f.nodes, node(id, osdf.TypeSubject, osdf.LinkParticipatesIn, "study-1", nil))
	}
	repo := osdf.NewRepository(newClient(t, f, "dcc"))

	ids, err := repo.Subjects(context.Background(), "study-1")
	if err != nil {
		t.Fatalf("Subjects: %v", err)
	}
	if !slices.Equal(ids, []string{"s1", "s2", "s3", "s4", "s5"}) {
		t.Fatalf("ids = %v", ids)
	}
	if got := f.requests.Load(); got != 3 {
		t.Fatalf("expected 3 page requests, got %d", got)
	}
}

func TestResolveStudy(t *testing.T) {
	f := &fakeOSDF{nodes: []osdf.Node{
		node("study-1", osdf.TypeStudy, "", "", nil),
		node("subj-1", osdf.TypeSubject, osdf.LinkParticipatesIn, "study-1", nil),
	}}
	repo := osdf.NewRepository(newClient(t, f, "dcc"))
	ctx := context.Background()

	if err := repo.ResolveStudy(ctx, "study-1"); err != nil {
		t.Fatalf("ResolveStudy: %v", err)
	}
	if err := repo.ResolveStudy(ctx, "missing"); !errors.Is(err, services.ErrLookup) {
		t.Fatalf("expected lookup failure, got %v", err)
	}
	if err := repo.ResolveStudy(ctx, "subj-1"); !errors.Is(err, services.ErrLookup) {
		t.Fatalf("expected lookup failure for non-study node, got %v", err)
	}
}

func TestPreparationsAndProteomesDecodeMeta(t *testing.T) {
	f := &fakeOSDF{nodes: []osdf.Node{
		node("hp-1", osdf.TypeHostAssayPrep, osdf.LinkPreparedFrom, "sample-1", map[string]any{
			"protocol_steps":  "steps",
			"experiment_type": "Shotgun",
			"species":         "Homo sapiens",
			"tissue":          "stool",
		}),
		node("mp-1", osdf.TypeMicrobAssayPrep, osdf.LinkPreparedFrom, "sample-1", map[string]any{"species": "Bacteria"}),
		node("prot-1", osdf.TypeProteome, osdf.LinkDerivedFrom, "hp-1", map[string]any{
			"result_url":               []any{"fasp://h/r.mzid", ""},
			"peak_url":                 "fasp://h/p.mgf",
			"raw_url":                  []any{"fasp://h/1.raw", "fasp://h/2.raw"},
			"instrument_name":          "Orbitrap",
			"exp_description":          "baseline",
			"data_processing_protocol": "dpp",
		}),
	}}
	repo := osdf.NewRepository(newClient(t, f, "dcc"))
	ctx := context.Background()

	host, err := repo.Preparations(ctx, "sample-1", study.PrepHost)
	if err != nil {
		t.Fatalf("Preparations: %v", err)
	}
	if len(host) != 1 || host[0].ID != "hp-1" || host[0].Species != "Homo sapiens" || host[0].Kind != study.PrepHost {
		t.Fatalf("unexpected host preps: %+v", host)
	}
	microb, err := repo.Preparations(ctx, "sample-1", study.PrepMicrobiome)
	if err != nil {
		t.Fatalf("Preparations: %v", err)
	}
	if len(microb) != 1 || microb[0].ID != "mp-1" {
		t.Fatalf("unexpected microbiome preps: %+v", microb)
	}

	proteomes, err := repo.Proteomes(ctx, "hp-1")
	if err != nil {
		t.Fatalf("Proteomes: %v", err)
	}
	if len(proteomes) != 1 {
		t.Fatalf("expected one proteome, got %d", len(proteomes))
	}
	p := proteomes[0]
	if !slices.Equal(p.ResultURLs, []string{"fasp://h/r.mzid"}) {
		t.Fatalf("result urls = %v", p.ResultURLs)
	}
	if !slices.Equal(p.PeakURLs, []string{"fasp://h/p.mgf"}) {
		t.Fatalf("peak urls = %v", p.PeakURLs)
	}
	if len(p.RawURLs) != 2 || len(p.OtherURLs) != 0 {
		t.Fatalf("raw=%v other=%v", p.RawURLs, p.OtherURLs)
	}
	if p.InstrumentName != "Orbitrap" || p.ExpDescription != "baseline" || p.DataProcessingProtocol != "dpp" {
		t.Fatalf("unexpected proteome fields: %+v", p)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	f := &fakeOSDF{}
	f.failures.Store(2)
	client := newClient(t, f, "dcc")

	info, err := client.Info(context.Background())
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Title != "OSDF" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if got := f.requests.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestClientReportsAuthenticationFailure(t *testing.T) {
	f := &fakeOSDF{}
	client := newClient(t, f, "intruder")

	_, err := client.Info(context.Background())
	if !errors.Is(err, services.ErrAuthentication) {
		t.Fatalf("expected authentication failure, got %v", err)
	}
	if got := f.requests.Load(); got != 1 {
		t.Fatalf("authentication failures must not be retried, got %d requests", got)
	}
}
