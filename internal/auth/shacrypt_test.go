package auth

import "testing"

func TestCryptSHA2_Vector(t *testing.T) {
	got, err := CryptSHA2(Sha512, []byte("GkbfJlFNcqp8VGNn"), []byte("test"), nil)
	if err != nil {
		t.Fatalf("CryptSHA2: %v", err)
	}
	want := "9uWgXkCpoCCdoER/1yc1on8Rus0.eQHfLWkGth30liq9rL.joqL1hP/KfBXUHNT8fbwB44Txr1A01WoozxokQ/"
	if got != want {
		t.Fatalf("CryptSHA2 = %q, want %q", got, want)
	}
}

func TestCryptSHA2_InvalidRounds(t *testing.T) {
	bad := uint32(1)
	if _, err := CryptSHA2(Sha512, []byte("salt"), []byte("pw"), &bad); err == nil {
		t.Fatal("expected error for out-of-range rounds")
	}
}

func TestCryptSHA2_Deterministic(t *testing.T) {
	a, err := CryptSHA2(Sha256, []byte("abcdefgh"), []byte("hunter2"), nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := CryptSHA2(Sha256, []byte("abcdefgh"), []byte("hunter2"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("CryptSHA2 not deterministic: %q != %q", a, b)
	}
	c, err := CryptSHA2(Sha256, []byte("abcdefgh"), []byte("hunter3"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if a == c {
		t.Fatalf("CryptSHA2 produced same hash for different passwords")
	}
}
