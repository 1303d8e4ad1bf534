/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuance

import (
	"context"
)

// operation is one handler invocation: verify checks the request against
// metadata and stored state, process performs the state transition and
// builds the response. verify may stash derived values on the operation for
// process to use.
type operation[Req, Resp any] interface {
	callbackID() string
	verify(ctx context.Context, req Req) error
	process(ctx context.Context, req Req) (Resp, error)
}

// run drives an operation: notify request, verify, process, notify errors.
// Callback delivery is best effort and never alters the outcome.
func run[Req, Resp any](ctx context.Context, s *Service, op operation[Req, Resp], req Req) (Resp, error) {
	var zero Resp

	s.notify(ctx, op.callbackID(), StatusRequested, "")

	if err := op.verify(ctx, req); err != nil {
		s.notify(ctx, op.callbackID(), StatusError, err.Error())

		return zero, err
	}

	resp, err := op.process(ctx, req)
	if err != nil {
		s.notify(ctx, op.callbackID(), StatusError, err.Error())

		return zero, err
	}

	return resp, nil
}
