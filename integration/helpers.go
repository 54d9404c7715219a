package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/jhchabran/chaupal"
	"github.com/jhchabran/chaupal/authentication/session_auth"
	"github.com/jhchabran/chaupal/dataset"
	"github.com/jhchabran/chaupal/memstore"
	"github.com/rs/zerolog"
)

const testServerHost = "localhost:8081"

// testingLogWriter is an output target for zerolog which will print on the testing logger.
type testingLogWriter struct {
	c *qt.C
}

// Write outputs on the passed bytes on the test logger
func (l *testingLogWriter) Write(p []byte) (n int, err error) {
	str := string(p[0 : len(p)-1]) // drop the final \n
	l.c.Log(str)
	return len(p), nil
}

// A struct to hold the server and its components.
// Provides a few helpers for convenience.
type testContext struct {
	c          *qt.C
	server     *chaupal.Server
	testServer *httptest.Server
	store      *memstore.MemStore
}

// newTestContext creates a server instance backed by the default dataset, for integration testing.
func newTestContext(c *qt.C) *testContext {
	tc := testContext{c: c}

	w := testingLogWriter{c}
	output := zerolog.ConsoleWriter{Out: &w, NoColor: true}
	logger := zerolog.New(output)

	recs, err := dataset.Default().Records(time.Now())
	c.Assert(err, qt.IsNil)
	tc.store = memstore.NewFromRecords(recs)

	tc.server = chaupal.NewServer(
		&chaupal.ServerConfig{Addr: testServerHost},
		logger,
		tc.store,
		session_auth.New("test", logger),
	)
	tc.testServer = httptest.NewServer(tc.server)

	return &tc
}

// url returns an url to the test server based on the given path
func (tc *testContext) url(path string) string {
	return tc.testServer.URL + path
}

// prepareServer boots up the server and sets up its teardown for the current test
func (tc *testContext) prepareServer() {
	tc.c.Assert(tc.server.Prepare(), qt.IsNil, qt.Commentf("couldn't prepare the server"))
	tc.c.Cleanup(func() {
		tc.testServer.Close()
	})
}

func (tc *testContext) newHTTPClient() *http.Client {
	jar, err := cookiejar.New(nil)
	tc.c.Assert(err, qt.IsNil)

	return &http.Client{
		Jar: jar,
	}
}

// newAuthenticatedClient returns a client whose session is the one of userID.
func (tc *testContext) newAuthenticatedClient(userID string) *http.Client {
	client := tc.newHTTPClient()
	resp := tc.do(client, "POST", "/session", map[string]string{"user_id": userID})
	defer resp.Body.Close()
	tc.c.Assert(resp.StatusCode, qt.Equals, 200)
	return client
}

// do sends a request with body encoded as JSON, unless it is nil.
func (tc *testContext) do(client *http.Client, method string, path string, body interface{}) *http.Response {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		tc.c.Assert(err, qt.IsNil)
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, tc.url(path), r)
	tc.c.Assert(err, qt.IsNil)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	tc.c.Assert(err, qt.IsNil)
	return resp
}

// doJSON sends a request, checks the response status and decodes its body into v.
func (tc *testContext) doJSON(client *http.Client, method string, path string, body interface{}, status int, v interface{}) {
	resp := tc.do(client, method, path, body)
	defer resp.Body.Close()
	tc.c.Assert(resp.StatusCode, qt.Equals, status, qt.Commentf("%s %s", method, path))
	if v != nil {
		tc.c.Assert(json.NewDecoder(resp.Body).Decode(v), qt.IsNil)
	}
}

// post is the subset of a post response the tests look at.
type post struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	AuthorID   string `json:"author_id"`
	Text       string `json:"text"`
	Likes      int64  `json:"likes"`
	Pos        int    `json:"pos"`
	Liked      bool   `json:"liked"`
	Bookmarked bool   `json:"bookmarked"`
	Score      *struct {
		Recency    float64 `json:"recency"`
		Engagement float64 `json:"engagement"`
		Affinity   float64 `json:"affinity"`
		Total      float64 `json:"total"`
	} `json:"score"`
}

type feed struct {
	Version uint64 `json:"version"`
	Posts   []post `json:"posts"`
}
