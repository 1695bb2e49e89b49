// Command keytool generates master keys and seals signer keys for the
// orchestrator's signer.encrypted_private_key setting.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/chainsafe/xchain-orchestrator/pkg/keys"
)

const usage = `Usage:
  keytool master                       print a new base64 master key
  keytool seal -env NAME <hex-key>     seal a hex private key with the master key in $NAME
  keytool address -env NAME <sealed>   print the address of a sealed key
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	fs := flag.NewFlagSet(os.Args[1], flag.ExitOnError)
	envName := fs.String("env", "ORCHESTRATOR_MASTER_KEY", "Environment variable holding the master key")
	_ = fs.Parse(os.Args[2:])

	if err := run(os.Args[1], *envName, fs.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "keytool: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd, envName string, args []string) error {
	switch cmd {
	case "master":
		key, err := keys.GenerateMasterKey()
		if err != nil {
			return err
		}
		fmt.Println(keys.MasterKeyToBase64(key))
		return nil

	case "seal":
		if len(args) != 1 {
			return fmt.Errorf("seal needs exactly one hex private key")
		}
		masterKey, err := keys.MasterKeyFromEnv(envName)
		if err != nil {
			return err
		}
		key, err := crypto.HexToECDSA(strings.TrimPrefix(args[0], "0x"))
		if err != nil {
			return fmt.Errorf("invalid private key: %w", err)
		}
		sealed, err := keys.EncryptSignerKey(key, masterKey)
		if err != nil {
			return err
		}
		fmt.Println(sealed)
		return nil

	case "address":
		if len(args) != 1 {
			return fmt.Errorf("address needs exactly one sealed key")
		}
		masterKey, err := keys.MasterKeyFromEnv(envName)
		if err != nil {
			return err
		}
		key, err := keys.DecryptSignerKey(args[0], masterKey)
		if err != nil {
			return err
		}
		fmt.Println(crypto.PubkeyToAddress(key.PublicKey).Hex())
		return nil
	}
	return fmt.Errorf("unknown command %q\n%s", cmd, usage)
}
