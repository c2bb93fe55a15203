package collect_test

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"pxsubmit/internal/command"
	"pxsubmit/internal/fetch"
	"pxsubmit/internal/logging"
	"pxsubmit/internal/notifications"
	"pxsubmit/internal/services"
	"pxsubmit/internal/study"
	"pxsubmit/internal/transfer"
	"pxsubmit/internal/validator"
)

var (
	sampleProtocol = strings.Repeat("Stool lysed, digested with trypsin. ", 2)
	dataProtocol   = strings.Repeat("Searched with MS-GF+ against UniProt. ", 2)
)

// fakeDB is an in-memory study hierarchy.
type fakeDB struct {
	studies   []string
	subjects  map[string][]string
	visits    map[string][]string
	samples   map[string][]string
	preps     map[string][]study.Preparation
	proteomes map[string][]study.Proteome
	err       map[string]error
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		subjects:  map[string][]string{},
		visits:    map[string][]string{},
		samples:   map[string][]string{},
		preps:     map[string][]study.Preparation{},
		proteomes: map[string][]study.Proteome{},
		err:       map[string]error{},
	}
}

func (f *fakeDB) ResolveStudy(_ context.Context, id string) error {
	if !slices.Contains(f.studies, id) {
		return services.Wrap(services.ErrLookup, "walk", "resolve study", "no study found with id "+id, nil)
	}
	return nil
}

func (f *fakeDB) Subjects(_ context.Context, id string) ([]string, error) { return f.subjects[id], f.err[id] }
func (f *fakeDB) Visits(_ context.Context, id string) ([]string, error)   { return f.visits[id], f.err[id] }
func (f *fakeDB) Samples(_ context.Context, id string) ([]string, error)  { return f.samples[id], f.err[id] }

func (f *fakeDB) Preparations(_ context.Context, sampleID string, kind study.PrepKind) ([]study.Preparation, error) {
	return f.preps[sampleID+"/"+string(kind)], f.err[sampleID]
}

func (f *fakeDB) Proteomes(_ context.Context, prepID string) ([]study.Proteome, error) {
	return f.proteomes[prepID], f.err[prepID]
}

func proteome(id string) study.Proteome {
	base := "fasp://aspera.example.org/data/" + id + "/"
	return study.Proteome{
		ID:                     id,
		ResultURLs:             []string{base + id + ".mzid"},
		PeakURLs:               []string{base + id + ".mgf"},
		RawURLs:                []string{base + id + ".raw"},
		OtherURLs:              []string{base + id + "_quant.txt"},
		InstrumentName:         "Orbitrap Fusion",
		ExpDescription:         "time point " + id,
		DataProcessingProtocol: dataProtocol,
	}
}

// singleStudy builds study s1 with one subject, visit and sample, and a host
// preparation carrying the given proteomes.
func singleStudy(proteomes ...study.Proteome) *fakeDB {
	db := newFakeDB()
	db.studies = []string{"s1"}
	db.subjects["s1"] = []string{"subj1"}
	db.visits["subj1"] = []string{"visit1"}
	db.samples["visit1"] = []string{"sample1"}
	db.preps["sample1/host"] = []study.Preparation{{
		ID:             "prep1",
		Kind:           study.PrepHost,
		SampleID:       "sample1",
		ProtocolSteps:  sampleProtocol,
		ExperimentType: "Shotgun proteomics",
		Species:        "Homo sapiens",
		Tissue:         "stool",
	}}
	db.proteomes["prep1"] = proteomes
	return db
}

// countingTransport writes a small file for every URL it is asked for.
type countingTransport struct {
	mu    sync.Mutex
	calls []string
}

func (c *countingTransport) Fetch(_ context.Context, src *url.URL, dest string) error {
	c.mu.Lock()
	c.calls = append(c.calls, src.String())
	c.mu.Unlock()
	return os.WriteFile(dest, []byte("data for "+src.Path), 0o644)
}

func (c *countingTransport) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func newRouter(transport fetch.Fetcher) *fetch.Router {
	router := fetch.NewRouter(logging.NewNop())
	router.Register(transport, "fasp", "https")
	return router
}

// converterStub writes a report per proteome; the default report is OK.
// Proteomes listed in errs fail with that error instead.
type converterStub struct {
	reports map[string]string
	errs    map[string]error
}

func (c *converterStub) Run(_ context.Context, spec command.Spec) (command.Result, error) {
	idx := slices.Index(spec.Args, "-reportfile")
	path := spec.Args[idx+1]
	id := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "validation_result_"), ".txt")
	if err := c.errs[id]; err != nil {
		return command.Result{}, err
	}
	report, ok := c.reports[id]
	if !ok {
		report = "Total proteins: 10\nTotal peptides: 50\nTotal spectra: 400\nStatus: OK\n"
	}
	return command.Result{}, os.WriteFile(path, []byte(report), 0o644)
}

func newValidator(t *testing.T, reports map[string]string) *validator.Client {
	t.Helper()
	v, err := validator.New("java", "pg-converter.jar", time.Minute,
		validator.WithExecutor(&converterStub{reports: reports}))
	if err != nil {
		t.Fatalf("validator.New: %v", err)
	}
	return v
}

type stubDispatcher struct {
	dirs    []string
	outcome transfer.Outcome
	err     error
}

func (s *stubDispatcher) Dispatch(_ context.Context, dir string) (transfer.Outcome, error) {
	s.dirs = append(s.dirs, dir)
	if s.outcome.Status == "" {
		s.outcome.Status = transfer.StatusSucceeded
	}
	return s.outcome, s.err
}

func fmeLines(t *testing.T, manifest string) []string {
	t.Helper()
	data, err := os.ReadFile(manifest)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "FME\t") || strings.HasPrefix(line, "SME\t") {
			out = append(out, line)
		}
	}
	return out
}

func countPrefix(lines []string, prefix string) int {
	n := 0
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

type recordingNotifier struct {
	events []string
}

func (r *recordingNotifier) NotifyRunCompleted(_ context.Context, report notifications.RunReport) error {
	r.events = append(r.events, "completed:"+report.StudyID)
	return nil
}

func (r *recordingNotifier) NotifyRunFailed(_ context.Context, report notifications.RunReport, _ error) error {
	r.events = append(r.events, "failed:"+report.StudyID)
	return nil
}

func (r *recordingNotifier) NotifyTransferFailed(_ context.Context, report notifications.RunReport, _ string) error {
	r.events = append(r.events, "transfer:"+report.TransferStatus)
	return nil
}

func (r *recordingNotifier) TestNotification(context.Context) error { return nil }
