package network

import (
	"encoding/hex"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"provermon/internal/prover"
)

// Field numbers of the network's GetFilteredProofRequests messages.
const (
	reqFulfillmentStatus protowire.Number = 2
	reqFulfiller         protowire.Number = 7
	reqLimit             protowire.Number = 10
	reqPage              protowire.Number = 11

	respRequests protowire.Number = 1

	prRequestID         protowire.Number = 1
	prProgramURI        protowire.Number = 7
	prStdinURI          protowire.Number = 8
	prFulfillmentStatus protowire.Number = 12
	prRequester         protowire.Number = 14
	prFulfiller         protowire.Number = 15
	prCreatedAt         protowire.Number = 19
	prUpdatedAt         protowire.Number = 20
	prProgramPublicURI  protowire.Number = 27
	prStdinPublicURI    protowire.Number = 28
)

// filterRequest is the subset of GetFilteredProofRequestsRequest we send.
type filterRequest struct {
	Status    prover.Status
	Fulfiller []byte
	Limit     uint32
	Page      uint32
}

func (r filterRequest) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, reqFulfillmentStatus, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Status))
	if len(r.Fulfiller) > 0 {
		b = protowire.AppendTag(b, reqFulfiller, protowire.BytesType)
		b = protowire.AppendBytes(b, r.Fulfiller)
	}
	b = protowire.AppendTag(b, reqLimit, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Limit))
	b = protowire.AppendTag(b, reqPage, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Page))
	return b
}

// proofRequest is the subset of ProofRequest the monitor reads.
type proofRequest struct {
	RequestID         []byte
	FulfillmentStatus prover.Status
	Requester         []byte
	Fulfiller         []byte
	CreatedAt         uint64
	UpdatedAt         uint64
	ProgramURI        string
	StdinURI          string
	ProgramPublicURI  string
	StdinPublicURI    string
}

// unmarshalResponse decodes GetFilteredProofRequestsResponse.
func unmarshalResponse(b []byte) ([]proofRequest, error) {
	var out []proofRequest
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if num != respRequests || typ != protowire.BytesType {
			return nil
		}
		pr, err := unmarshalProofRequest(v)
		if err != nil {
			return fmt.Errorf("requests: %w", err)
		}
		out = append(out, pr)
		return nil
	})
	return out, err
}

func unmarshalProofRequest(b []byte) (proofRequest, error) {
	var pr proofRequest
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte, n uint64) error {
		switch typ {
		case protowire.BytesType:
			switch num {
			case prRequestID:
				pr.RequestID = append([]byte(nil), v...)
			case prRequester:
				pr.Requester = append([]byte(nil), v...)
			case prFulfiller:
				pr.Fulfiller = append([]byte(nil), v...)
			case prProgramURI:
				pr.ProgramURI = string(v)
			case prStdinURI:
				pr.StdinURI = string(v)
			case prProgramPublicURI:
				pr.ProgramPublicURI = string(v)
			case prStdinPublicURI:
				pr.StdinPublicURI = string(v)
			}
		case protowire.VarintType:
			switch num {
			case prFulfillmentStatus:
				pr.FulfillmentStatus = prover.Status(int32(n))
			case prCreatedAt:
				pr.CreatedAt = n
			case prUpdatedAt:
				pr.UpdatedAt = n
			}
		}
		return nil
	})
	return pr, err
}

// walk iterates over the top-level fields of a message. Length-delimited
// values are passed in v, varints in n; other wire types are skipped.
func walk(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, n uint64) error) error {
	for len(b) > 0 {
		num, typ, tn := protowire.ConsumeTag(b)
		if tn < 0 {
			return protowire.ParseError(tn)
		}
		b = b[tn:]

		var (
			v  []byte
			n  uint64
			vn int
		)
		switch typ {
		case protowire.BytesType:
			v, vn = protowire.ConsumeBytes(b)
		case protowire.VarintType:
			n, vn = protowire.ConsumeVarint(b)
		default:
			vn = protowire.ConsumeFieldValue(num, typ, b)
		}
		if vn < 0 {
			return protowire.ParseError(vn)
		}
		b = b[vn:]

		if typ != protowire.BytesType && typ != protowire.VarintType {
			continue
		}
		if err := fn(num, typ, v, n); err != nil {
			return err
		}
	}
	return nil
}

// toRecord maps a decoded ProofRequest to the domain record. The status is
// the one that was queried, not the one echoed back.
func toRecord(status prover.Status, pr proofRequest) *prover.Record {
	r := &prover.Record{
		Status:           status,
		ID:               hex.EncodeToString(pr.RequestID),
		Requester:        hex.EncodeToString(pr.Requester),
		ProgramURI:       pr.ProgramURI,
		StdinURI:         pr.StdinURI,
		ProgramPublicURI: pr.ProgramPublicURI,
		StdinPublicURI:   pr.StdinPublicURI,
	}
	if len(pr.Fulfiller) > 0 {
		r.Fulfiller = hex.EncodeToString(pr.Fulfiller)
	}
	if pr.CreatedAt > 0 {
		t := time.Unix(int64(pr.CreatedAt), 0).UTC()
		r.CreatedAt = &t
	}
	if pr.UpdatedAt > 0 {
		t := time.Unix(int64(pr.UpdatedAt), 0).UTC()
		r.UpdatedAt = &t
	}
	return r
}
