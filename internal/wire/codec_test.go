package wire

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/kaze-mesh/kaze/internal/xerror"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Hdr{
		{BodyType: "ping", SrcIdent: 0x0a000001, Version: 1},
		{
			BodyType:  "req",
			SrcIdent:  7,
			RetCode:   RetOK,
			Version:   2,
			TimeoutMs: 500,
			Headers:   map[string][]byte{"trace-id": []byte("abc123"), "empty": {}},
			Rpc:       RpcType{Kind: RpcReq, Seq: 42},
			Route:     ByIdent(9),
		},
		{
			BodyType: "bcast",
			Rpc:      RpcType{Kind: RpcNtf, Seq: 1},
			Route:    RouteType{Kind: RouteBroadcast, Ident: 0x0a000000, Mask: 0xffffff00},
		},
		{
			BodyType: "multi",
			Route:    RouteType{Kind: RouteMulticast, Idents: []uint32{1, 2, 3}},
		},
	}

	for _, want := range cases {
		buf := Encode(nil, want)
		got, n, err := Decode(buf)
		require.NoError(t, err)
		require.Equal(t, len(buf), n)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestDecodeTruncated(t *testing.T) {
	buf := Encode(nil, Hdr{BodyType: "x"})
	_, _, err := Decode(buf[:len(buf)-2])
	require.ErrorIs(t, err, xerror.ErrInvalid)
}

func TestDecodeUnknownTag(t *testing.T) {
	_, _, err := Decode([]byte{0x7f, 0, 0, 0, 0})
	require.ErrorIs(t, err, xerror.ErrInvalid)
}

func TestDecodeOverrunField(t *testing.T) {
	_, _, err := Decode([]byte{tagBodyType, 0xff, 0xff, 0xff, 0xff})
	require.ErrorIs(t, err, xerror.ErrInvalid)
}
