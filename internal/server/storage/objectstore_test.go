package storage

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

const testBucket = "videos"

var objectTime = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

// fakeS3 answers the subset of the S3 REST API the object-store backends use,
// path-style only. Listings are served one object per page.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	requests []string
}

func newFakeS3(t *testing.T, objects map[string][]byte) (*fakeS3, *httptest.Server) {
	t.Helper()
	f := &fakeS3{objects: objects}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeS3) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type listContents struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         int64  `xml:"Size"`
	StorageClass string `xml:"StorageClass"`
}

type listResult struct {
	XMLName               xml.Name       `xml:"http://s3.amazonaws.com/doc/2006-03-01/ ListBucketResult"`
	Name                  string         `xml:"Name"`
	Prefix                string         `xml:"Prefix"`
	KeyCount              int            `xml:"KeyCount"`
	MaxKeys               int            `xml:"MaxKeys"`
	IsTruncated           bool           `xml:"IsTruncated"`
	ContinuationToken     string         `xml:"ContinuationToken,omitempty"`
	NextContinuationToken string         `xml:"NextContinuationToken,omitempty"`
	Contents              []listContents `xml:"Contents"`
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.RequestURI())

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if bucket != testBucket {
		writeS3Error(w, r, http.StatusNotFound, "NoSuchBucket")
		return
	}

	q := r.URL.Query()
	switch {
	case key == "" && q.Has("location"):
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><LocationConstraint xmlns="http://s3.amazonaws.com/doc/2006-03-01/">us-east-1</LocationConstraint>`)
	case key == "" && q.Get("list-type") == "2":
		f.list(w, q.Get("continuation-token"))
	case key == "":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet || r.Method == http.MethodHead:
		data, ok := f.objects[key]
		if !ok {
			writeS3Error(w, r, http.StatusNotFound, "NoSuchKey")
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		w.Header().Set("Last-Modified", objectTime.Format(http.TimeFormat))
		w.Header().Set("ETag", `"etag-`+key+`"`)
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			w.Write(data)
		}
	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeS3Error(w, r, http.StatusNotImplemented, "NotImplemented")
	}
}

// list serves one key per page; the continuation token is the index of the
// next key.
func (f *fakeS3) list(w http.ResponseWriter, token string) {
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if token != "" {
		fmt.Sscanf(token, "page-%d", &start)
	}

	res := listResult{Name: testBucket, MaxKeys: 1, ContinuationToken: token}
	if start < len(keys) {
		k := keys[start]
		res.KeyCount = 1
		res.Contents = []listContents{{
			Key:          k,
			LastModified: objectTime.Format("2006-01-02T15:04:05.000Z"),
			ETag:         `"etag-` + k + `"`,
			Size:         int64(len(f.objects[k])),
			StorageClass: "STANDARD",
		}}
	}
	if start+1 < len(keys) {
		res.IsTruncated = true
		res.NextContinuationToken = fmt.Sprintf("page-%d", start+1)
	}

	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprint(w, xml.Header)
	xml.NewEncoder(w).Encode(res)
}

func writeS3Error(w http.ResponseWriter, r *http.Request, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message><Resource>%s</Resource><RequestId>req-1</RequestId></Error>`,
		code, code, r.URL.Path)
}
