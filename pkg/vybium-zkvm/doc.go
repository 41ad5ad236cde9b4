// Package vybiumzkvm provides the public API of the Vybium zkVM: a
// register machine over a 31-bit prime field with continuation-based
// execution, offline-checked memory, and a recursive verifier stack that
// compresses an execution into a constant-size on-chain instance.
//
// # Quick Start
//
// Executing a program and producing a continuation proof:
//
//	cfg := vybiumzkvm.DefaultConfig()
//	vm, err := vybiumzkvm.NewVM(cfg, program)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	proof, err := vm.Prove(ctx, segmentProver)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Verifying it:
//
//	verifier, err := vybiumzkvm.NewVerifier(cfg, vm.VerifyingKey(), engine)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := verifier.Verify(proof)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if result.Valid {
//		fmt.Println("proof is valid")
//	}
//
// # Architecture
//
// The module uses a hybrid public/private layout:
//
// - pkg/vybium-zkvm/: public API (this package)
// - internal/vybium-zkvm/: private implementation (not importable)
//
// The public API provides stable interfaces for program construction, VM
// execution, proof container encoding, and continuation verification. The
// STARK backend itself is external: callers plug one in through the
// SegmentProver and StarkEngine interfaces.
//
// # License
//
// See LICENSE file in the repository root.
package vybiumzkvm
