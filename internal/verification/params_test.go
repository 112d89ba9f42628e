package verification

import (
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestExtractParams_CodePrecedence(t *testing.T) {
	tests := []struct {
		name string
		link string
		want string
	}{
		{name: "query oobCode beats fragment code", link: "/verification?oobCode=Q1#code=F1", want: "Q1"},
		{name: "fragment only", link: "/verification#code=ABC", want: "ABC"},
		{name: "query oobCode beats oobcode", link: "/verification?oobcode=low&oobCode=camel", want: "camel"},
		{name: "query oobcode beats code", link: "/verification?code=plain&oobcode=low", want: "low"},
		{name: "query code beats fragment oobCode", link: "/verification?code=plain#oobCode=F", want: "plain"},
		{name: "fragment oobCode beats fragment code", link: "/verification#code=c&oobCode=o", want: "o"},
		{name: "empty query value falls through", link: "/verification?oobCode=&code=X", want: "X"},
		{name: "fragment with leading slash", link: "/verification#/?oobCode=R", want: "R"},
		{name: "none", link: "/verification?mode=signIn", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractParams(mustParse(t, tt.link), "")
			if got.Code != tt.want {
				t.Errorf("Code = %q, want %q", got.Code, tt.want)
			}
		})
	}
}

func TestExtractParams_EmailFallbackAndDecoding(t *testing.T) {
	tests := []struct {
		name    string
		link    string
		pending string
		want    string
	}{
		{name: "query percent-encoded", link: "/v?oobCode=x&email=user%40example.com", want: "user@example.com"},
		{name: "fragment percent-encoded", link: "/v?oobCode=x#email=user%40example.com", want: "user@example.com"},
		{name: "double encoded", link: "/v?oobCode=x&email=user%2540example.com", want: "user@example.com"},
		{name: "query beats fragment", link: "/v?email=q%40x.io#email=f%40x.io", want: "q@x.io"},
		{name: "pending fallback", link: "/v?oobCode=x", pending: "p@x.io", want: "p@x.io"},
		{name: "pending encoded", link: "/v?oobCode=x", pending: "p%40x.io", want: "p@x.io"},
		{name: "missing everywhere", link: "/v?oobCode=x", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractParams(mustParse(t, tt.link), tt.pending)
			if got.Email != tt.want {
				t.Errorf("Email = %q, want %q", got.Email, tt.want)
			}
		})
	}
}

func TestExtractParams_APIKeyAndMode(t *testing.T) {
	got := ExtractParams(mustParse(t, "/v?oobCode=x&apiKey=link-key&mode=signIn"), "")
	if got.APIKey != "link-key" {
		t.Errorf("APIKey = %q", got.APIKey)
	}
	if got.Mode != "signIn" {
		t.Errorf("Mode = %q", got.Mode)
	}
}

func TestExtractParams_NilLocation(t *testing.T) {
	got := ExtractParams(nil, "p@x.io")
	if got.Code != "" || got.Email != "p@x.io" {
		t.Errorf("got %+v", got)
	}
}

func TestLinkKey(t *testing.T) {
	a := LinkKey("b1", mustParse(t, "/v?oobCode=X&email=a%40b.co"))
	b := LinkKey("b1", mustParse(t, "/v#oobCode=X"))
	if a != b {
		t.Errorf("same code should share a key: %q vs %q", a, b)
	}
	if LinkKey("b2", mustParse(t, "/v?oobCode=X")) == a {
		t.Error("different browsers must not share a key")
	}
	if LinkKey("b1", mustParse(t, "/v?email=x")) == LinkKey("b1", mustParse(t, "/v?email=y")) {
		t.Error("code-less links should be distinguished by their raw query")
	}
}
