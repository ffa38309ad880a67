package handler

import (
	"errors"
	"net/http"

	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/pow"
	"chatrelay/internal/pkg/req"
	"chatrelay/internal/pkg/resp"
)

// PowVerifyInput is the body of POST /api/pow/verify.
type PowVerifyInput struct {
	Nonce   string `json:"nonce"`
	Counter string `json:"counter"`
}

// HandlePowChallenge issues a nonce and the difficulty to solve it at.
// A difficulty of 0 tells the client no proof is needed.
func HandlePowChallenge(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !deps.PoW.Enabled() {
			resp.RespondSuccess(w, map[string]any{"difficulty": 0})
			return
		}

		resp.RespondSuccess(w, map[string]any{
			"nonce":      deps.PoW.GenerateNonce(),
			"difficulty": deps.PoW.Difficulty(),
		})
	}
}

// HandlePowVerify trades a solved challenge for a single-use connection token.
func HandlePowVerify(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !deps.PoW.Enabled() {
			resp.RespondError(w, errs.NewError(errs.ErrInvalidParams))
			return
		}

		var input PowVerifyInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, customErr)
			return
		}

		if input.Nonce == "" || input.Counter == "" {
			resp.RespondError(w, errs.NewError(errs.ErrInvalidParams))
			return
		}

		token, err := deps.PoW.ValidateProof(input.Nonce, input.Counter)
		if err != nil {
			if !errors.Is(err, pow.ErrNonceInvalid) && !errors.Is(err, pow.ErrProofInsufficent) {
				logx.Error(err, "Unexpected proof validation failure")
			}
			resp.RespondError(w, errs.NewError(errs.ErrPowChallengeInvalid))
			return
		}

		resp.RespondSuccess(w, map[string]string{"token": token})
	}
}
