package hostfunc

import (
	"testing"

	"brainvm/handle"
	"brainvm/types"
)

func TestRegisterCryptoExamplesSyncBcrypt(t *testing.T) {
	reg := NewRegistry()
	handles := handle.NewTable(0)
	syncID, _ := RegisterCryptoExamples(reg, handles)

	args := types.NewMap("")
	args.Set(types.NewString("password"), types.NewString("hunter2"))
	args.Set(types.NewString("cost"), types.NewNumber(4)) // cheapest valid bcrypt cost, keeps the test fast

	result, err := reg.CallSync(syncID, nil, args)
	if err != nil {
		t.Fatalf("CallSync: %v", err)
	}
	hashed, ok := result.(types.StringValue)
	if !ok || hashed.Val == "" {
		t.Fatalf("expected a non-empty hashed String, got %v", result)
	}
}

func TestRegisterCryptoExamplesMissingPassword(t *testing.T) {
	reg := NewRegistry()
	handles := handle.NewTable(0)
	syncID, _ := RegisterCryptoExamples(reg, handles)

	if _, err := reg.CallSync(syncID, nil, types.NewMap("")); err == nil {
		t.Error("expected an error for a missing 'password' argument")
	}
}

func TestRegisterCryptoExamplesAsyncResolves(t *testing.T) {
	reg := NewRegistry()
	handles := handle.NewTable(0)
	_, asyncID := RegisterCryptoExamples(reg, handles)

	handleID, err := handles.CreatePending()
	if err != nil {
		t.Fatalf("CreatePending: %v", err)
	}

	args := types.NewMap("")
	args.Set(types.NewString("password"), types.NewString("hunter2"))
	args.Set(types.NewString("cost"), types.NewNumber(4))

	if err := reg.CallAsync(asyncID, nil, args, handleID); err != nil {
		t.Fatalf("CallAsync: %v", err)
	}

	h, ok := handles.Get(handleID)
	if !ok {
		t.Fatal("handle should still be registered")
	}
	if h.State != handle.RESOLVED {
		t.Errorf("handle state = %v, want RESOLVED", h.State)
	}
}

func TestRegisterCryptoExamplesAsyncRejectsOnBadArgs(t *testing.T) {
	reg := NewRegistry()
	handles := handle.NewTable(0)
	_, asyncID := RegisterCryptoExamples(reg, handles)

	handleID, _ := handles.CreatePending()
	if err := reg.CallAsync(asyncID, nil, types.NewMap(""), handleID); err != nil {
		t.Fatalf("CallAsync: %v", err)
	}

	h, _ := handles.Get(handleID)
	if h.State != handle.REJECTED {
		t.Errorf("handle state = %v, want REJECTED for a missing password argument", h.State)
	}
}
