package rpc

import (
	"testing"

	"github.com/fedmesh/fedmesh/pkg/ferrors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		code codes.Code
		want ferrors.Kind
	}{
		{codes.DeadlineExceeded, ferrors.Timeout},
		{codes.Unavailable, ferrors.Unreachable},
		{codes.Canceled, ferrors.Unreachable},
		{codes.InvalidArgument, ferrors.BadUserInput},
		{codes.FailedPrecondition, ferrors.BadUserInput},
		{codes.Internal, ferrors.RemoteInternal},
	}
	for _, tc := range cases {
		err := classify("node0", "RunUDF", status.Error(tc.code, "boom"))
		if got := ferrors.KindOf(err); got != tc.want {
			t.Errorf("classify(%v) kind = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestClassifyRetryability(t *testing.T) {
	err := classify("node0", "GetNodeInfo", status.Error(codes.Unavailable, "down"))
	if !ferrors.IsRetryable(ferrors.KindOf(err)) {
		t.Error("Unavailable should classify as retryable")
	}
	err = classify("node0", "CreateTable", status.Error(codes.InvalidArgument, "bad schema"))
	if ferrors.IsRetryable(ferrors.KindOf(err)) {
		t.Error("InvalidArgument should not classify as retryable")
	}
}
