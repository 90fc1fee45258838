// Package main (cmd/attestctl) is the command line client of the attestation registry.
//
// Every caller, whether user, attestator or owner, is identified by the key in
// --key-file. Commands:
//
//	keygen              - Create a key file and print its address
//	address             - Print the address of the key file
//	commit              - Hash a secret (or a passphrase-derived secret) into a commitment
//	register            - Claim a slot, paying the current registration cost
//	save                - Store a commitment as the assigned attestator
//	confirm             - Reveal the secret of a pending registration
//	init                - Initialize the registry, becoming its owner
//	add-attestator      - Owner: add an attestator
//	remove-attestator   - Owner: remove an attestator
//	set-cost            - Owner: change the registration cost
//	set-max-nonce-diff  - Owner: change the height window
//	claim               - Owner: transfer the treasury balance to the owner
//	user, state, public-key, cost, max-nonce-diff, attestators, owner, version
//	                    - Views
//
// Example workflow:
//
//	attestctl --key-file=user.key keygen
//	attestctl --key-file=user.key register --key=0x4b...
//	attestctl commit --key=0x4b... --passphrase="correct horse"   # sent to the attestator
//	attestctl --key-file=attestator.key save --key=0x4b... --commitment=0x...
//	attestctl --key-file=user.key confirm --key=0x4b... --passphrase="correct horse"
package main
