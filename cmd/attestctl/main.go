package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/attestation-registry/api/clients"
	"github.com/ruteri/attestation-registry/cmd/flags"
	"github.com/ruteri/attestation-registry/cryptoutils"
	"github.com/ruteri/attestation-registry/interfaces"
	"github.com/urfave/cli/v2"
)

var flagKey = &cli.StringFlag{
	Name:     "key",
	Required: true,
	Usage:    "obfuscated key of the registration, 64 hex characters",
}

var flagSecret = &cli.StringFlag{
	Name:  "secret",
	Usage: "secret as a string, or hex with 0x prefix",
}

var flagPassphrase = &cli.StringFlag{
	Name:    "passphrase",
	Usage:   "derive the secret from a passphrase and the obfuscated key",
	EnvVars: []string{"ATTESTATION_PASSPHRASE"},
}

var flagCommitment = &cli.StringFlag{
	Name:     "commitment",
	Required: true,
	Usage:    "commitment hash, 0x-prefixed",
}

var flagAddress = &cli.StringFlag{
	Name:     "address",
	Required: true,
	Usage:    "attestator address",
}

var flagCost = &cli.StringFlag{
	Name:     "cost",
	Required: true,
	Usage:    "amount such as 100 or 100native",
}

var flagMaxNonceDiff = &cli.Uint64Flag{
	Name:     "max-nonce-diff",
	Required: true,
	Usage:    "height window for reclaiming, saving and confirming",
}

var flagPayment = &cli.StringFlag{
	Name:  "payment",
	Usage: "payment to attach, defaults to the current registration cost",
}

var flagAttestators = &cli.StringSliceFlag{
	Name:     "attestator",
	Required: true,
	Usage:    "initial attestator address, repeat for several",
}

func main() {
	app := &cli.App{
		Name:  "attestctl",
		Usage: "Interact with the attestation registry",
		Flags: []cli.Flag{
			flags.ServerAddrFlag,
			flags.KeyFileFlag,
			flags.HashFlag,
		},
		Commands: []*cli.Command{
			{
				Name:  "keygen",
				Usage: "create a key file and print its address",
				Action: func(cCtx *cli.Context) error {
					path := cCtx.String(flags.KeyFileFlag.Name)
					key, created, err := cryptoutils.LoadOrCreateKey(path)
					if err != nil {
						return err
					}
					if !created {
						fmt.Fprintf(os.Stderr, "key file %s already exists\n", path)
					}
					fmt.Println(crypto.PubkeyToAddress(key.PublicKey).Hex())
					return nil
				},
			},
			{
				Name:  "address",
				Usage: "print the address of the key file",
				Action: func(cCtx *cli.Context) error {
					key, err := cryptoutils.LoadKey(cCtx.String(flags.KeyFileFlag.Name))
					if err != nil {
						return err
					}
					fmt.Println(crypto.PubkeyToAddress(key.PublicKey).Hex())
					return nil
				},
			},
			{
				Name:  "commit",
				Usage: "print the commitment of a secret",
				Flags: []cli.Flag{flagKey, flagSecret, flagPassphrase},
				Action: func(cCtx *cli.Context) error {
					key, err := parseKey(cCtx)
					if err != nil {
						return err
					}
					secret, err := readSecret(cCtx, key)
					if err != nil {
						return err
					}
					hasher, err := cryptoutils.HasherByName(cCtx.String(flags.HashFlag.Name))
					if err != nil {
						return err
					}
					fmt.Println(hasher(secret).Hex())
					return nil
				},
			},
			{
				Name:  "register",
				Usage: "claim a registration slot",
				Flags: []cli.Flag{flagKey, flagPayment},
				Action: func(cCtx *cli.Context) error {
					client, err := signedClient(cCtx)
					if err != nil {
						return err
					}
					key, err := parseKey(cCtx)
					if err != nil {
						return err
					}

					var payment interfaces.Amount
					if raw := cCtx.String(flagPayment.Name); raw != "" {
						payment, err = interfaces.ParseAmount(raw)
					} else {
						payment, err = client.RegistrationCost(cCtx.Context)
					}
					if err != nil {
						return err
					}
					return client.Register(cCtx.Context, key, payment)
				},
			},
			{
				Name:  "save",
				Usage: "store a commitment as the assigned attestator",
				Flags: []cli.Flag{flagKey, flagCommitment},
				Action: func(cCtx *cli.Context) error {
					client, err := signedClient(cCtx)
					if err != nil {
						return err
					}
					key, err := parseKey(cCtx)
					if err != nil {
						return err
					}
					commitment, err := parseHash(cCtx.String(flagCommitment.Name))
					if err != nil {
						return err
					}
					return client.SaveAttestation(cCtx.Context, key, commitment)
				},
			},
			{
				Name:  "confirm",
				Usage: "reveal the secret of a pending registration",
				Flags: []cli.Flag{flagKey, flagSecret, flagPassphrase},
				Action: func(cCtx *cli.Context) error {
					client, err := signedClient(cCtx)
					if err != nil {
						return err
					}
					key, err := parseKey(cCtx)
					if err != nil {
						return err
					}
					secret, err := readSecret(cCtx, key)
					if err != nil {
						return err
					}
					return client.ConfirmAttestation(cCtx.Context, key, secret)
				},
			},
			{
				Name:  "init",
				Usage: "initialize the registry, becoming its owner",
				Flags: []cli.Flag{flagCost, flagMaxNonceDiff, flagAttestators},
				Action: func(cCtx *cli.Context) error {
					client, err := signedClient(cCtx)
					if err != nil {
						return err
					}
					cost, err := interfaces.ParseAmount(cCtx.String(flagCost.Name))
					if err != nil {
						return err
					}
					var attestators []common.Address
					for _, raw := range cCtx.StringSlice(flagAttestators.Name) {
						addr, err := parseAddress(raw)
						if err != nil {
							return err
						}
						attestators = append(attestators, addr)
					}
					return client.Init(cCtx.Context, cost, cCtx.Uint64(flagMaxNonceDiff.Name), attestators...)
				},
			},
			{
				Name:  "add-attestator",
				Flags: []cli.Flag{flagAddress},
				Action: func(cCtx *cli.Context) error {
					client, err := signedClient(cCtx)
					if err != nil {
						return err
					}
					addr, err := parseAddress(cCtx.String(flagAddress.Name))
					if err != nil {
						return err
					}
					return client.AddAttestator(cCtx.Context, addr)
				},
			},
			{
				Name:  "remove-attestator",
				Flags: []cli.Flag{flagAddress},
				Action: func(cCtx *cli.Context) error {
					client, err := signedClient(cCtx)
					if err != nil {
						return err
					}
					addr, err := parseAddress(cCtx.String(flagAddress.Name))
					if err != nil {
						return err
					}
					return client.RemoveAttestator(cCtx.Context, addr)
				},
			},
			{
				Name:  "set-cost",
				Flags: []cli.Flag{flagCost},
				Action: func(cCtx *cli.Context) error {
					client, err := signedClient(cCtx)
					if err != nil {
						return err
					}
					cost, err := interfaces.ParseAmount(cCtx.String(flagCost.Name))
					if err != nil {
						return err
					}
					return client.SetRegisterCost(cCtx.Context, cost)
				},
			},
			{
				Name:  "set-max-nonce-diff",
				Flags: []cli.Flag{flagMaxNonceDiff},
				Action: func(cCtx *cli.Context) error {
					client, err := signedClient(cCtx)
					if err != nil {
						return err
					}
					return client.SetMaxNonceDiff(cCtx.Context, cCtx.Uint64(flagMaxNonceDiff.Name))
				},
			},
			{
				Name:  "claim",
				Usage: "transfer the treasury balance to the owner",
				Action: func(cCtx *cli.Context) error {
					client, err := signedClient(cCtx)
					if err != nil {
						return err
					}
					amount, err := client.Claim(cCtx.Context)
					if err != nil {
						return err
					}
					fmt.Println(amount.String())
					return nil
				},
			},
			{
				Name:  "user",
				Usage: "print the full record of a key",
				Flags: []cli.Flag{flagKey},
				Action: func(cCtx *cli.Context) error {
					key, err := parseKey(cCtx)
					if err != nil {
						return err
					}
					record, err := viewClient(cCtx).UserState(cCtx.Context, key)
					if err != nil {
						return err
					}
					return printJSON(record)
				},
			},
			{
				Name:  "state",
				Flags: []cli.Flag{flagKey},
				Action: func(cCtx *cli.Context) error {
					key, err := parseKey(cCtx)
					if err != nil {
						return err
					}
					state, err := viewClient(cCtx).State(cCtx.Context, key)
					if err != nil {
						return err
					}
					fmt.Println(state)
					return nil
				},
			},
			{
				Name:  "public-key",
				Flags: []cli.Flag{flagKey},
				Action: func(cCtx *cli.Context) error {
					key, err := parseKey(cCtx)
					if err != nil {
						return err
					}
					owner, err := viewClient(cCtx).PublicKey(cCtx.Context, key)
					if err != nil {
						return err
					}
					fmt.Println(owner.Hex())
					return nil
				},
			},
			{
				Name: "cost",
				Action: func(cCtx *cli.Context) error {
					cost, err := viewClient(cCtx).RegistrationCost(cCtx.Context)
					if err != nil {
						return err
					}
					fmt.Println(cost.String())
					return nil
				},
			},
			{
				Name: "max-nonce-diff",
				Action: func(cCtx *cli.Context) error {
					diff, err := viewClient(cCtx).MaxNonceDiff(cCtx.Context)
					if err != nil {
						return err
					}
					fmt.Println(diff)
					return nil
				},
			},
			{
				Name: "attestators",
				Action: func(cCtx *cli.Context) error {
					attestators, err := viewClient(cCtx).Attestators(cCtx.Context)
					if err != nil {
						return err
					}
					for _, addr := range attestators {
						fmt.Println(addr.Hex())
					}
					return nil
				},
			},
			{
				Name: "owner",
				Action: func(cCtx *cli.Context) error {
					owner, err := viewClient(cCtx).Owner(cCtx.Context)
					if err != nil {
						return err
					}
					fmt.Println(owner.Hex())
					return nil
				},
			},
			{
				Name: "version",
				Action: func(cCtx *cli.Context) error {
					version, err := viewClient(cCtx).Version(cCtx.Context)
					if err != nil {
						return err
					}
					fmt.Println(version)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func signedClient(cCtx *cli.Context) (*clients.AttestationClient, error) {
	key, err := cryptoutils.LoadKey(cCtx.String(flags.KeyFileFlag.Name))
	if err != nil {
		return nil, err
	}
	return clients.NewAttestationClient(cCtx.String(flags.ServerAddrFlag.Name), key), nil
}

func viewClient(cCtx *cli.Context) *clients.AttestationClient {
	return clients.NewAttestationClient(cCtx.String(flags.ServerAddrFlag.Name), nil)
}

func parseKey(cCtx *cli.Context) (interfaces.ObfuscatedKey, error) {
	return interfaces.NewObfuscatedKeyFromHex(cCtx.String(flagKey.Name))
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseHash(s string) (common.Hash, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil || len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid hash %q", s)
	}
	return common.BytesToHash(raw), nil
}

// readSecret returns the secret given with --secret or derived from --passphrase.
func readSecret(cCtx *cli.Context, key interfaces.ObfuscatedKey) ([]byte, error) {
	secret, passphrase := cCtx.String(flagSecret.Name), cCtx.String(flagPassphrase.Name)
	switch {
	case secret != "" && passphrase != "":
		return nil, errors.New("use either --secret or --passphrase")
	case passphrase != "":
		return cryptoutils.DeriveSecret([]byte(passphrase), key.Bytes())
	case strings.HasPrefix(secret, "0x"):
		return hex.DecodeString(secret[2:])
	case secret != "":
		return []byte(secret), nil
	default:
		return nil, errors.New("--secret or --passphrase is required")
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
