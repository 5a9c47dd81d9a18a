package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/bornholm/trainyard/internal/crypto"
	"github.com/bornholm/trainyard/internal/dataset"
	"github.com/bornholm/trainyard/internal/diff"
	"github.com/bornholm/trainyard/internal/failure"
	"github.com/bornholm/trainyard/internal/file"
	"github.com/bornholm/trainyard/internal/job"
	"github.com/bornholm/trainyard/internal/model"
	"github.com/bornholm/trainyard/internal/queue"
	"github.com/bornholm/trainyard/internal/relay"
	"github.com/bornholm/trainyard/internal/runtime"
	"github.com/bornholm/trainyard/internal/slogx"
	"github.com/bornholm/trainyard/internal/store"
	datasetRepository "github.com/bornholm/trainyard/internal/store/repository/dataset"
	jobRepository "github.com/bornholm/trainyard/internal/store/repository/job"
	modelRepository "github.com/bornholm/trainyard/internal/store/repository/model"
	runtimeRepository "github.com/bornholm/trainyard/internal/store/repository/runtime"
	scriptRepository "github.com/bornholm/trainyard/internal/store/repository/script"
	"github.com/bornholm/trainyard/internal/store/storetest"
	"github.com/bornholm/trainyard/internal/vault"
)

type fakeDispatcher struct {
	mutex    sync.Mutex
	messages []*queue.JobMessage
	err      error
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, message *queue.JobMessage) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.err != nil {
		return d.err
	}

	d.messages = append(d.messages, message)
	return nil
}

type fakeDaemon struct {
	images []runtime.Image
}

func (d *fakeDaemon) ListImages(ctx context.Context) ([]runtime.Image, error) {
	return d.images, nil
}

func (d *fakeDaemon) LoadImage(ctx context.Context, archive io.Reader) error {
	_, err := io.Copy(io.Discard, archive)
	return errors.WithStack(err)
}

func (d *fakeDaemon) RemoveImage(ctx context.Context, dockerID string) error {
	return nil
}

func (d *fakeDaemon) KillContainer(ctx context.Context, containerID string) error {
	return nil
}

func (d *fakeDaemon) Ping(ctx context.Context) error {
	return nil
}

type testEnv struct {
	handler    *Handler
	jobs       *job.Controller
	relay      *relay.Relay
	dispatcher *fakeDispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := storetest.New(t)
	logger := slogx.NewTestLogger(t)

	key, err := crypto.RandomBytes(crypto.KeySize)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	sealer, err := crypto.NewSealer(key)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	daemon := &fakeDaemon{
		images: []runtime.Image{{ID: "sha256:py", RepoTags: []string{"python:3.11"}, Size: 1024}},
	}

	dispatcher := &fakeDispatcher{}
	models := model.NewRegistry(modelRepository.NewRepository(st), logger)
	jobs := job.NewController(jobRepository.NewRepository(st), models, dispatcher, daemon, logger)
	logRelay := relay.New(logger)

	handler := NewHandler(
		dataset.NewStore(datasetRepository.NewRepository(st), file.NewStorage(t.TempDir(), logger), logger),
		vault.New(scriptRepository.NewRepository(st), file.NewStorage(t.TempDir(), logger), sealer, logger),
		jobs,
		runtime.NewRegistry(runtimeRepository.NewRepository(st), daemon, logger),
		models,
		logRelay,
		file.NewStorage(t.TempDir(), logger),
		logger,
		WithMaxScriptSize(64),
		WithStreamKeepAlive(50*time.Millisecond),
	)

	return &testEnv{
		handler:    handler,
		jobs:       jobs,
		relay:      logRelay,
		dispatcher: dispatcher,
	}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	return rec
}

func newMultipartRequest(t *testing.T, path string, fileField string, filename string, content string, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}

	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, filename)
		require.NoError(t, err)

		_, err = io.WriteString(part, content)
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return req
}

func newJSONRequest(t *testing.T, method, path string, payload any) *http.Request {
	t.Helper()

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")

	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var value T
	if err := json.Unmarshal(rec.Body.Bytes(), &value); err != nil {
		t.Fatalf("could not decode response %q: %+v", rec.Body.String(), errors.WithStack(err))
	}

	return value
}

func TestDatasetEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, newMultipartRequest(t, "/datasets/upload", "file", "sales.csv", "id,amount\n1,10\n", map[string]string{
		"name":          "sales",
		"versionAction": "NEW_DATASET",
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[store.Dataset](t, rec)
	require.Equal(t, 1, first.Version)

	rec = env.do(t, newMultipartRequest(t, "/datasets/upload", "file", "sales.csv", "id,amount,region\n1,10,eu\n2,5,us\n", map[string]string{
		"name":          "sales",
		"versionAction": "NEW_VERSION",
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	second := decode[store.Dataset](t, rec)
	require.Equal(t, 2, second.Version)

	rec = env.do(t, newMultipartRequest(t, "/datasets/upload", "file", "sales.csv", "x\n", map[string]string{
		"name":          "sales",
		"versionAction": "NEW_DATASET",
	}))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.NotEmpty(t, decode[ErrorResponse](t, rec).Error)

	rec = env.do(t, newMultipartRequest(t, "/datasets/upload", "", "", "", map[string]string{"name": "sales"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/datasets/diff?idA=1&idB=2", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	report := decode[struct {
		DatasetA *store.Dataset `json:"datasetA"`
		DatasetB *store.Dataset `json:"datasetB"`
		Diff     *diff.Result   `json:"diff"`
	}](t, rec)
	require.Equal(t, []string{"region"}, report.Diff.SchemaChange.Added)
	require.Equal(t, "+1", report.Diff.Rows.Delta)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/datasets/diff?idA=1", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/datasets/1/download", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "id,amount\n1,10\n", rec.Body.String())
	require.Contains(t, rec.Header().Get("Content-Disposition"), "sales.csv")

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/datasets", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]*store.Dataset](t, rec), 2)

	rec = env.do(t, httptest.NewRequest(http.MethodDelete, "/datasets/1", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/datasets/1", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/datasets/abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScriptEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, newMultipartRequest(t, "/scripts", "script", "train.txt", "print(1)", map[string]string{
		"name":          "train",
		"versionAction": "NEW_SCRIPT",
	}))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, newMultipartRequest(t, "/scripts", "script", "train.py", strings.Repeat("#", 65), map[string]string{
		"name":          "train",
		"versionAction": "NEW_SCRIPT",
	}))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, newMultipartRequest(t, "/scripts", "script", "train.py", "print(1)", map[string]string{
		"name":          "train",
		"category":      "nlp",
		"versionAction": "NEW_SCRIPT",
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[store.Script](t, rec)

	rec = env.do(t, newMultipartRequest(t, "/scripts", "script", "train.py", "print(2)", map[string]string{
		"versionAction":    "NEW_VERSION",
		"previousScriptId": "1",
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	second := decode[store.Script](t, rec)
	require.Equal(t, 2, second.Version)
	require.Equal(t, "nlp", second.Category)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/scripts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	groups := decode[map[string][]*vault.Group](t, rec)
	require.Len(t, groups["nlp"], 1)
	require.Equal(t, second.ID, groups["nlp"][0].LatestID)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/scripts/1/content", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "print(1)", decode[ScriptContentResponse](t, rec).Content)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/scripts/1/versions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	versions := decode[[]*store.Script](t, rec)
	require.Len(t, versions, 2)
	require.Equal(t, second.ID, versions[0].ID)
	require.Equal(t, first.ID, versions[1].ID)

	rec = env.do(t, httptest.NewRequest(http.MethodDelete, "/scripts/1", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/scripts/1/content", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	require.NotZero(t, first.ID)
}

func TestJobEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, newJSONRequest(t, http.MethodPost, "/jobs", map[string]any{
		"scriptId":    1,
		"datasetId":   1,
		"runtimeId":   1,
		"params":      map[string]any{"lr": 0.1, "_target_version": 12},
		"modelAction": "NEW_MODEL",
		"modelName":   "resnet",
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[JobResponse](t, rec).Job
	require.Equal(t, store.JobStatusQueued, created.Status)
	require.Equal(t, 1, created.Intent.Version)
	require.NotContains(t, created.Params, "_target_version")
	require.Len(t, env.dispatcher.messages, 1)

	rec = env.do(t, newJSONRequest(t, http.MethodPost, "/jobs", map[string]any{"scriptId": 1, "unknown": true}))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]*store.Job](t, rec), 1)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/jobs/1/logs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Body.String())

	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/jobs/1/stop", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, store.JobStatusCancelled, decode[JobResponse](t, rec).Job.Status)

	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/jobs/1/stop", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/jobs/1/restart", nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	restarted := decode[JobResponse](t, rec).Job
	require.Equal(t, created.ID, *restarted.RestartedFromID)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/jobs/42", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/models", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	models := decode[[]*store.Model](t, rec)
	require.Len(t, models, 1)
	require.Equal(t, "resnet", models[0].Name)
}

func TestJobDispatchFailure(t *testing.T) {
	env := newTestEnv(t)
	env.dispatcher.err = failure.UpstreamUnavailable(errors.New("redis down"), "could not push job")

	rec := env.do(t, newJSONRequest(t, http.MethodPost, "/jobs", map[string]any{
		"scriptId":    1,
		"datasetId":   1,
		"runtimeId":   1,
		"modelAction": "NEW_MODEL",
		"modelName":   "resnet",
	}))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())

	res := decode[JobDispatchFailedResponse](t, rec)
	require.NotEmpty(t, res.Error)
	require.NotNil(t, res.Job)
	require.NotZero(t, res.Job.ID)
	require.Equal(t, store.JobStatusQueued, res.Job.Status)

	// Once the queue is back, the persisted job is dispatched through a restart.
	env.dispatcher.err = nil

	rec = env.do(t, httptest.NewRequest(http.MethodPost, fmt.Sprintf("/jobs/%d/restart", res.Job.ID), nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, res.Job.ID, *decode[JobResponse](t, rec).Job.RestartedFromID)
	require.Len(t, env.dispatcher.messages, 1)

	env.dispatcher.err = failure.UpstreamUnavailable(nil, "queue unreachable")

	rec = env.do(t, httptest.NewRequest(http.MethodPost, fmt.Sprintf("/jobs/%d/restart", res.Job.ID), nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
	require.NotNil(t, decode[JobDispatchFailedResponse](t, rec).Job)

	jobs, err := env.jobs.List(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
}

func TestJobStream(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.jobs.Create(context.Background(), job.Request{
		ScriptID:    1,
		DatasetID:   1,
		RuntimeID:   1,
		ModelAction: model.ActionNewModel,
		ModelName:   "resnet",
	})
	require.NoError(t, err)

	server := httptest.NewServer(env.handler)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/jobs/1/stream", nil)
	require.NoError(t, err)

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	require.Eventually(t, func() bool {
		return env.relay.Subscribers(created.ID) == 1
	}, time.Second, 10*time.Millisecond)

	env.relay.Broadcast(created.ID, "epoch 1\nloss=0.2")

	scanner := bufio.NewScanner(res.Body)
	data := make([]string, 0)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			data = append(data, strings.TrimPrefix(line, "data: "))
		}
		if line == "" && len(data) > 0 {
			break
		}
	}

	require.Equal(t, []string{"epoch 1", "loss=0.2"}, data)

	cancel()

	require.Eventually(t, func() bool {
		return env.relay.Subscribers(created.ID) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestImageArchiveExtension(t *testing.T) {
	type testCase struct {
		Filename string
		Ext      string
		OK       bool
	}

	testCases := []testCase{
		{Filename: "image.tar", Ext: ".tar", OK: true},
		{Filename: "image.TAR.GZ", Ext: ".tar.gz", OK: true},
		{Filename: "image.tgz", Ext: ".tgz", OK: true},
		{Filename: "image.gz", OK: false},
		{Filename: "image.zip", OK: false},
		{Filename: "tar", OK: false},
	}

	for _, tc := range testCases {
		t.Run(tc.Filename, func(t *testing.T) {
			ext, ok := imageArchiveExtension(tc.Filename)
			require.Equal(t, tc.OK, ok)
			require.Equal(t, tc.Ext, ext)
		})
	}
}

func TestRuntimeEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/runtimes/scan", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	candidates := decode[[]*runtime.Candidate](t, rec)
	require.Len(t, candidates, 1)

	rec = env.do(t, newJSONRequest(t, http.MethodPost, "/runtimes/register", RegisterRuntimesRequest{Images: candidates}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, decode[RegisterRuntimesResponse](t, rec).Registered, 1)

	rec = env.do(t, newJSONRequest(t, http.MethodPost, "/runtimes/register", RegisterRuntimesRequest{Images: []*runtime.Candidate{{DockerID: "sha256:gone"}}}))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/runtimes", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	runtimes := decode[[]*store.RuntimeImage](t, rec)
	require.Len(t, runtimes, 1)
	require.Equal(t, store.Size(1024), runtimes[0].SizeBytes)
	require.Contains(t, rec.Body.String(), `"sizeBytes":"1024"`)

	rec = env.do(t, newMultipartRequest(t, "/runtimes/upload", "file", "image.tar", "not a tarball", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, newMultipartRequest(t, "/runtimes/upload", "file", "image.tgz", "not a tarball", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "malformed image archive")

	rec = env.do(t, newMultipartRequest(t, "/runtimes/upload", "file", "image.zip", "PK", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "unsupported image archive")

	rec = env.do(t, httptest.NewRequest(http.MethodDelete, "/runtimes/1?fromDaemon=maybe", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodDelete, "/runtimes/1?fromDaemon=true", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
}
