package graph

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEndpoint(t *testing.T, handler http.HandlerFunc) *SPARQLClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewSPARQLClient(srv.URL+"/repositories/test", WithBasicAuth("admin", "secret"))
	require.NoError(t, err)
	return client
}

func TestSPARQLClient_SelectDecodesBindings(t *testing.T) {
	var gotQuery, gotAccept, gotUser string
	client := newTestEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		gotQuery = form.Get("query")
		gotAccept = r.Header.Get("Accept")
		gotUser, _, _ = r.BasicAuth()

		w.Header().Set("Content-Type", mimeSPARQLResultsJSON)
		_, _ = io.WriteString(w, `{
			"head": {"vars": ["name", "mass"]},
			"results": {"bindings": [
				{"name": {"type": "literal", "value": "benzene", "xml:lang": "en"},
				 "mass": {"type": "literal", "value": "78.11", "datatype": "http://www.w3.org/2001/XMLSchema#decimal"}},
				{"name": {"type": "uri", "value": "http://example.org/toluene"}}
			]}
		}`)
	})

	query := "PREFIX ex: <http://example.org/>\nSELECT ?name ?mass WHERE { ?s ex:name ?name }"
	rows, err := client.Execute(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, query, gotQuery)
	assert.Equal(t, mimeSPARQLResultsJSON, gotAccept)
	assert.Equal(t, "admin", gotUser)

	require.Len(t, rows, 2)
	assert.Equal(t, Term{Type: "literal", Value: "benzene", Lang: "en"}, rows[0]["name"])
	assert.Equal(t, "78.11", rows[0]["mass"].(Term).Value)
	assert.Equal(t, "<http://example.org/toluene>", rows[1]["name"].(Term).String())
}

func TestSPARQLClient_EmptyResultIsSuccess(t *testing.T) {
	client := newTestEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"head": {"vars": ["s"]}, "results": {"bindings": []}}`)
	})

	rows, err := client.Execute(context.Background(), "SELECT ?s WHERE { ?s ?p ?o }")
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestSPARQLClient_AskReturnsBooleanRow(t *testing.T) {
	client := newTestEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"head": {}, "boolean": true}`)
	})

	rows, err := client.Execute(context.Background(), "ASK { ?s ?p ?o }")
	require.NoError(t, err)
	assert.Equal(t, ResultSet{{"boolean": true}}, rows)
}

func TestSPARQLClient_ConstructDecodesRDFJSON(t *testing.T) {
	var gotAccept string
	client := newTestEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		_, _ = io.WriteString(w, `{
			"http://example.org/b": {
				"http://example.org/name": [{"type": "literal", "value": "b"}]
			},
			"http://example.org/a": {
				"http://example.org/type": [{"type": "uri", "value": "http://example.org/Sample"}],
				"http://example.org/name": [{"type": "literal", "value": "a"}]
			}
		}`)
	})

	rows, err := client.Execute(context.Background(), "CONSTRUCT { ?s ?p ?o } WHERE { ?s ?p ?o }")
	require.NoError(t, err)
	assert.Equal(t, mimeRDFJSON, gotAccept)

	require.Len(t, rows, 3)
	assert.Equal(t, "http://example.org/a", rows[0]["subject"].(Term).Value)
	assert.Equal(t, "http://example.org/name", rows[0]["predicate"].(Term).Value)
	assert.Equal(t, "http://example.org/type", rows[1]["predicate"].(Term).Value)
	assert.Equal(t, "http://example.org/b", rows[2]["subject"].(Term).Value)
}

func TestSPARQLClient_ErrorBodyIsKeptVerbatim(t *testing.T) {
	diagnostic := "MALFORMED QUERY: org.eclipse.rdf4j.query.parser.sparql.ast.VisitorException: QName 'ex:name' uses an undefined prefix"
	client := newTestEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, "\n"+diagnostic+"\n")
	})

	query := "SELECT ?n WHERE { ?s ex:name ?n }"
	_, err := client.Execute(context.Background(), query)
	require.Error(t, err)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, diagnostic, execErr.Message)
	assert.Equal(t, http.StatusBadRequest, execErr.StatusCode)
	assert.Equal(t, query, execErr.Query)
}

func TestSPARQLClient_EmptyErrorBodyFallsBackToStatus(t *testing.T) {
	client := newTestEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.Execute(context.Background(), "SELECT * WHERE { ?s ?p ?o }")
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "503 Service Unavailable", execErr.Message)
}

func TestSPARQLClient_MalformedJSONIsExecutionError(t *testing.T) {
	client := newTestEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>not json</html>")
	})

	_, err := client.Execute(context.Background(), "SELECT * WHERE { ?s ?p ?o }")
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Contains(t, execErr.Message, "decode SELECT results")
}

func TestSPARQLClient_TimeoutIsExecutionError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	client, err := NewSPARQLClient(srv.URL, WithRequestTimeout(50*time.Millisecond))
	require.NoError(t, err)

	_, err = client.Execute(context.Background(), "SELECT * WHERE { ?s ?p ?o }")
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.NotEmpty(t, execErr.Message)
}

func TestSPARQLClient_TimeoutLeavesSharedHTTPClientAlone(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	shared := &http.Client{}
	for name, opts := range map[string][]SPARQLOption{
		"timeout first": {WithRequestTimeout(50 * time.Millisecond), WithHTTPClient(shared)},
		"client first":  {WithHTTPClient(shared), WithRequestTimeout(50 * time.Millisecond)},
	} {
		t.Run(name, func(t *testing.T) {
			client, err := NewSPARQLClient(srv.URL, opts...)
			require.NoError(t, err)

			_, err = client.Execute(context.Background(), "SELECT * WHERE { ?s ?p ?o }")
			var execErr *ExecutionError
			require.True(t, errors.As(err, &execErr))
			assert.ErrorIs(t, execErr, context.DeadlineExceeded)
			assert.Zero(t, shared.Timeout)
		})
	}
}

func TestNewSPARQLClient_RejectsBadEndpoint(t *testing.T) {
	_, err := NewSPARQLClient("localhost:7200")
	assert.Error(t, err)
}

func TestFetchOntology(t *testing.T) {
	var gotQuery string
	client := newTestEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		gotQuery = form.Get("query")
		_, _ = io.WriteString(w, `{
			"http://example.org/Sample": {
				"http://www.w3.org/2000/01/rdf-schema#label": [{"type": "literal", "value": "Sample", "xml:lang": "en"}]
			}
		}`)
	})

	text, err := client.FetchOntology(context.Background(), "http://example.org/ontology")
	require.NoError(t, err)
	assert.Equal(t, "CONSTRUCT {?s ?p ?o} FROM <http://example.org/ontology> WHERE {?s ?p ?o}", gotQuery)
	assert.Equal(t, "<http://example.org/Sample> <http://www.w3.org/2000/01/rdf-schema#label> \"Sample\"@en .\n", text)
}
