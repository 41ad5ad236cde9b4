package main

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/sha3"

	vybiumzkvm "github.com/vybium/vybium-zkvm/pkg/vybium-zkvm"
)

// The mock backend stands in for a real STARK prover during development.
// A body is the keccak digest of the connector publics, so tampering with
// a connector is caught, but nothing about the trace is proven. It must
// never ship to production.

func mockBody(vk *vybiumzkvm.VerifyingKey, c vybiumzkvm.Connector) ([]byte, error) {
	enc, err := cbor.Marshal(c)
	if err != nil {
		return nil, err
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(enc)
	for i := range vk.Commit {
		b := vk.Commit[i].Bytes()
		h.Write(b[:])
	}
	return h.Sum(nil), nil
}

type mockProver struct {
	vk *vybiumzkvm.VerifyingKey
}

func (p mockProver) ProveSegment(_ context.Context, seg *vybiumzkvm.Segment, _ [][]vybiumzkvm.FieldElement) ([]byte, error) {
	return mockBody(p.vk, vybiumzkvm.Connector{
		AppCommit:   p.vk.Commit,
		InitialPC:   seg.Publics.InitialPC,
		FinalPC:     seg.Publics.FinalPC,
		IsTerminate: seg.Publics.IsTerminate,
		ExitCode:    seg.Publics.ExitCode,
		InitialRoot: seg.PreRoot,
		FinalRoot:   seg.PostRoot,
	})
}

type mockEngine struct{}

func (mockEngine) VerifyChildProof(vk *vybiumzkvm.VerifyingKey, proof *vybiumzkvm.SegmentProof) error {
	want, err := mockBody(vk, proof.Connector)
	if err != nil {
		return err
	}
	if len(proof.Body) != len(want) {
		return fmt.Errorf("mock body length mismatch")
	}
	for i := range want {
		if proof.Body[i] != want[i] {
			return fmt.Errorf("mock body mismatch")
		}
	}
	return nil
}
