package main

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ed25519"

	"github.com/congo-pay/timelock/internal/identity"
)

const defaultProgramID = "HyhjkEEXwfRrjupW2Bq4ALpGPe2fEDTDuPKK2HVFFn6m"

// keyFile is the on-disk form of a signing key.
type keyFile struct {
	Identity  string `json:"identity"`
	SecretKey string `json:"secret_key"`
}

func newKeygenCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an ed25519 signing key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pub, priv, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return err
			}
			id, err := identity.FromPublicKey(pub)
			if err != nil {
				return err
			}
			kf := keyFile{Identity: id.String(), SecretKey: base58.Encode(priv)}
			data, err := json.MarshalIndent(kf, "", "  ")
			if err != nil {
				return err
			}
			if out == "" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			if err := os.WriteFile(out, append(data, '\n'), 0o600); err != nil {
				return fmt.Errorf("write key file: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id.String())
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the key to this file instead of stdout")
	return cmd
}

func newAddressCmd() *cobra.Command {
	var programID string
	cmd := &cobra.Command{
		Use:   "address <owner>",
		Short: "Derive the wallet address and bump of an owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := identity.Parse(args[0])
			if err != nil {
				return fmt.Errorf("owner: %w", err)
			}
			ns, err := identity.ParseNamespace(programID)
			if err != nil {
				return fmt.Errorf("program id: %w", err)
			}
			addr, bump, err := ns.Derive(owner)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "address %s\nbump    %d\n", addr, bump)
			return err
		},
	}
	cmd.Flags().StringVar(&programID, "program-id", defaultProgramID, "namespace the server derives addresses in (PROGRAM_ID)")
	return cmd
}

func loadKey(path string) (ed25519.PrivateKey, identity.Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, identity.Identity{}, fmt.Errorf("read key file: %w", err)
	}
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, identity.Identity{}, fmt.Errorf("decode key file: %w", err)
	}
	secret := base58.Decode(kf.SecretKey)
	if len(secret) != ed25519.PrivateKeySize {
		return nil, identity.Identity{}, fmt.Errorf("secret key has %d bytes, want %d", len(secret), ed25519.PrivateKeySize)
	}
	priv := ed25519.PrivateKey(secret)
	id, err := identity.FromPublicKey(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, identity.Identity{}, err
	}
	return priv, id, nil
}
