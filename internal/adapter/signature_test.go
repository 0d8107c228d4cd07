package adapter

import "testing"

func TestVerifySignatureRoundTrip(t *testing.T) {
	secret := []byte("shh-its-a-secret")
	body := []byte(`{"hello":"world"}`)

	sig := SignOutbound(secret, body)

	if !Verify(secret, body, sig) {
		t.Fatalf("expected signature to verify")
	}
}

func TestVerifyRejectsMutatedBody(t *testing.T) {
	secret := []byte("shh-its-a-secret")
	body := []byte(`{"hello":"world"}`)
	sig := SignOutbound(secret, body)

	mutated := []byte(`{"hello":"world!"}`)
	if Verify(secret, mutated, sig) {
		t.Fatalf("expected mutated body to fail verification")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	body := []byte(`{"hello":"world"}`)
	sig := SignOutbound([]byte("secret-a"), body)

	if Verify([]byte("secret-b"), body, sig) {
		t.Fatalf("expected wrong secret to fail verification")
	}
}
