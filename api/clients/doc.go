/*
Package clients provides a Go client for the attestation registry HTTP API.

AttestationClient covers every operation and view. Mutating requests are
signed with the client's secp256k1 key through the flashbots signature
scheme, so the registry sees the key's address as the caller:

	key, _ := cryptoutils.LoadKey("user.key")
	client := clients.NewAttestationClient("http://localhost:8080", key)

	cost, err := client.RegistrationCost(ctx)
	if err != nil {
		return err
	}
	if err := client.Register(ctx, obfuscatedKey, cost); err != nil {
		return err
	}

Failures returned by the registry are *APIError values. They match the
engine sentinels by code:

	if errors.Is(err, attestation.ErrRecordBusy) {
		// another user holds the slot, retry after the window
	}

A client created with a nil key can only call views.
*/
package clients
