// SPDX-License-Identifier: MPL-2.0

package source

import (
	"testing"

	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

func TestReferenceCandidates(t *testing.T) {
	t.Parallel()

	got := referenceCandidates("v1.2")
	want := []string{"refs/tags/v1.2", "refs/tags/1.2", "refs/heads/v1.2"}
	if len(got) != len(want) {
		t.Fatalf("referenceCandidates() = %v", got)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("candidate %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestHTTPAuth(t *testing.T) {
	t.Parallel()

	env := map[string]string{"GITLAB_TOKEN": "secret"}
	auth, ok := tryHTTPAuth(func(k string) string { return env[k] }).(*http.BasicAuth)
	if !ok || auth.Username != "gitlab-ci-token" || auth.Password != "secret" {
		t.Errorf("tryHTTPAuth() = %v", auth)
	}
	if tryHTTPAuth(func(string) string { return "" }) != nil {
		t.Error("tryHTTPAuth() returned credentials without a token")
	}

	g := &Git{httpAuth: &http.BasicAuth{Username: "u"}}
	if g.authFor("https://github.com/zlib/zlib.git") == nil {
		t.Error("https URL did not get http credentials")
	}
	if g.authFor("/srv/git/zlib") != nil {
		t.Error("local path got credentials")
	}
}
