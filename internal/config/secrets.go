package config

import (
	"fmt"
	"os"
	"time"

	"deltascan/internal/model"

	"github.com/hashicorp/vault/api"
)

// ResolveDSN returns the connection string: the configured one directly,
// or the vault-stored secret. Vault failures are fatal with no retry.
func (c *Config) ResolveDSN() (string, error) {
	if c.Connection.DSN != "" {
		return c.Connection.DSN, nil
	}
	return fetchVaultSecret(c.Connection.Vault)
}

func fetchVaultSecret(v Vault) (string, error) {
	client, err := api.NewClient(&api.Config{
		Address: v.Address,
		Timeout: 10 * time.Second,
	})
	if err != nil {
		return "", model.NewScanError(model.ErrCodeVaultFailed, "creating vault client", err)
	}

	token := v.Token
	if token == "" {
		token = os.Getenv("VAULT_TOKEN")
	}
	if token == "" {
		return "", model.NewScanError(model.ErrCodeVaultFailed, "no vault token configured", nil)
	}
	client.SetToken(token)

	secret, err := client.Logical().Read(v.Path)
	if err != nil {
		return "", model.NewScanError(model.ErrCodeVaultFailed, fmt.Sprintf("reading vault path %s", v.Path), err)
	}
	if secret == nil || secret.Data == nil {
		return "", model.NewScanError(model.ErrCodeVaultFailed, fmt.Sprintf("no secret at vault path %s", v.Path), nil)
	}

	data := secret.Data
	// KV v2 nests the payload under "data".
	if nested, ok := data["data"].(map[string]any); ok {
		data = nested
	}

	value, ok := data[v.Key].(string)
	if !ok || value == "" {
		return "", model.NewScanError(model.ErrCodeVaultFailed,
			fmt.Sprintf("key %s not found at vault path %s", v.Key, v.Path), nil)
	}
	return value, nil
}
