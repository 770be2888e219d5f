package crypto

import "testing"

func TestBodyDigest(t *testing.T) {
	if got := B64(MD5([]byte("hello world"))); got != "XrY7u+Ae7tCTyyK7j1rNww==" {
		t.Fatalf("unexpected digest: %q", got)
	}
}

func TestMessageMAC(t *testing.T) {
	nonce := []byte("123456")
	digest := MD5([]byte("hello world"))

	cases := []struct {
		username, password, want string
	}{
		{"SWUOTA", "swuota", "UB6sU2ZZcF4c1pkdegpatw=="},
		{"DIAGNOSE", "diagnose", "t1iGUbaC3fOzb7TpqZ1Mow=="},
	}
	for _, c := range cases {
		if got := MessageMAC(c.username, c.password, nonce, digest); got != c.want {
			t.Fatalf("%s: got %q, want %q", c.username, got, c.want)
		}
	}
}

func TestMessageMACVariesWithNonce(t *testing.T) {
	digest := MD5([]byte("hello world"))
	a := MessageMAC("SWUOTA", "swuota", []byte("123456"), digest)
	b := MessageMAC("SWUOTA", "swuota", []byte("654321"), digest)
	if a == b {
		t.Fatalf("expected distinct MACs for distinct nonces")
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPassword("secret", hash) {
		t.Fatalf("expected password to verify")
	}
	if VerifyPassword("wrong", hash) {
		t.Fatalf("expected wrong password to fail")
	}
}
