package hostfunc

import (
	"fmt"
	"strings"

	amoghecrypt "github.com/amoghe/go-crypt"
	makinencrypt "github.com/sergeymakinen/go-crypt"
	"golang.org/x/crypto/bcrypt"

	"brainvm/handle"
	"brainvm/types"
)

// RegisterCryptoExamples wires a pair of sample host collaborators —
// one synchronous, one asynchronous — into reg, callable from HOST_CALL
// and HOST_CALL_ASYNC respectively. These are illustrative host
// functions, not the operator/conversion catalog the core VM
// deliberately treats as an external concern.
//
// Both dispatch by the salt's crypt(3) prefix, the same algorithm
// selection the teacher's crypt() builtin used: "$1$" (MD5), "$5$"
// (SHA-256), "$6$" (SHA-512), or no recognized prefix (bcrypt).
func RegisterCryptoExamples(reg *Registry, handles *handle.Table) (syncID, asyncID int32) {
	syncID = reg.RegisterSync("host.password_hash", hostPasswordHash)
	asyncID = reg.RegisterAsync("host.password_hash_async", func(ctx types.ExecutionContext, args types.MapValue, handleID uint32) {
		result, err := hostPasswordHash(ctx, args)
		if err != nil {
			if ev, ok := err.(types.ErrValue); ok {
				handles.Reject(handleID, ev)
				return
			}
			handles.Reject(handleID, types.NewErr(types.HostError, err.Error()))
			return
		}
		handles.Resolve(handleID, result)
	})
	return syncID, asyncID
}

func hostPasswordHash(ctx types.ExecutionContext, args types.MapValue) (types.Value, error) {
	passwordVal, ok := args.Get(types.NewString("password"))
	if !ok {
		return nil, types.NewErr(types.ScriptError, "host.password_hash: missing argument 'password'")
	}
	password, ok := passwordVal.(types.StringValue)
	if !ok {
		return nil, types.NewErr(types.ScriptError, "host.password_hash: 'password' must be a String")
	}

	salt := ""
	if saltVal, ok := args.Get(types.NewString("salt")); ok {
		s, ok := saltVal.(types.StringValue)
		if !ok {
			return nil, types.NewErr(types.ScriptError, "host.password_hash: 'salt' must be a String")
		}
		salt = s.Val
	}

	switch {
	case strings.HasPrefix(salt, "$6$"):
		hashed, err := amoghecrypt.Crypt(password.Val, salt)
		if err != nil {
			return nil, types.NewErr(types.HostError, fmt.Sprintf("host.password_hash: sha512-crypt: %s", err))
		}
		return types.NewString(hashed), nil

	case strings.HasPrefix(salt, "$5$"):
		hashed, err := makinencrypt.Crypt(password.Val, salt)
		if err != nil {
			return nil, types.NewErr(types.HostError, fmt.Sprintf("host.password_hash: sha256-crypt: %s", err))
		}
		return types.NewString(hashed), nil

	case strings.HasPrefix(salt, "$1$"):
		hashed, err := amoghecrypt.Crypt(password.Val, salt)
		if err != nil {
			return nil, types.NewErr(types.HostError, fmt.Sprintf("host.password_hash: md5-crypt: %s", err))
		}
		return types.NewString(hashed), nil

	default:
		cost := bcrypt.DefaultCost
		if costVal, ok := args.Get(types.NewString("cost")); ok {
			n, ok := costVal.(types.NumberValue)
			if !ok {
				return nil, types.NewErr(types.ScriptError, "host.password_hash: 'cost' must be a Number")
			}
			cost = int(n.Val)
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(password.Val), cost)
		if err != nil {
			return nil, types.NewErr(types.HostError, fmt.Sprintf("host.password_hash: bcrypt: %s", err))
		}
		return types.NewString(string(hashed)), nil
	}
}
