package cmd

import (
	"encoding/binary"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	cml "github.com/BackendStack21/cml-go"
	"github.com/BackendStack21/cml-go/rsa"
	"github.com/BackendStack21/cml-go/utils"
	"github.com/BackendStack21/cml-go/wire"
)

// DomainKeyChecksum separates key pair checksums from other SHA3 uses.
const DomainKeyChecksum = "cml-cli-keypair-v1"

// RSAKeyPairExport represents an exported RSA key pair
type RSAKeyPairExport struct {
	SecurityLevel string `json:"security_level"`
	Bits          int    `json:"bits"`
	PublicKey     string `json:"public_key"`
	PrivateKey    string `json:"private_key"`
	CreatedAt     string `json:"created_at"`
	Checksum      string `json:"checksum,omitempty"` // integrity check over both keys
}

// RSACiphertextExport represents an exported encrypted message
type RSACiphertextExport struct {
	Ciphertext string `json:"ciphertext"`
	Length     int    `json:"length"`
	BlockSize  int    `json:"block_size"`
}

func keyChecksum(public, private []byte) []byte {
	data := make([]byte, 0, len(public)+len(private))
	data = append(data, public...)
	data = append(data, private...)
	return utils.HashWithDomain(DomainKeyChecksum, data)
}

// blockSize is the number of message bytes packed into one word. Every
// block must stay below n.
func blockSize(n int) (int, error) {
	size := min((n-1)/8, 8)
	if size < 1 {
		return 0, errors.Wrapf(cml.ErrMessageTooLarge, "%d-bit modulus cannot hold a byte", n)
	}
	return size, nil
}

func packBlocks(msg []byte, size int) []uint64 {
	blocks := make([]uint64, 0, (len(msg)+size-1)/size)
	buf := make([]byte, 8)
	for i := 0; i < len(msg); i += size {
		clear(buf)
		chunk := msg[i:min(i+size, len(msg))]
		copy(buf[8-size:], chunk)
		blocks = append(blocks, binary.BigEndian.Uint64(buf))
	}
	return blocks
}

func unpackBlocks(blocks []uint64, size, length int) ([]byte, error) {
	if length < 0 || length > len(blocks)*size || (len(blocks) > 0 && length <= (len(blocks)-1)*size) {
		return nil, errors.Errorf("length %d does not match %d blocks of %d bytes", length, len(blocks), size)
	}
	out := make([]byte, 0, len(blocks)*size)
	buf := make([]byte, 8)
	for _, b := range blocks {
		binary.BigEndian.PutUint64(buf, b)
		out = append(out, buf[8-size:]...)
	}
	return out[:length], nil
}

func (a *app) rsaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rsa",
		Short: "Textbook RSA key generation and encryption",
		Long: `Textbook RSA key generation and encryption.

WARNING: no padding is applied. Ciphertexts are deterministic and malleable.
Use it to learn, not to protect data.`,
	}
	cmd.AddCommand(a.rsaKeygenCmd(), a.rsaEncryptCmd(), a.rsaDecryptCmd())
	return cmd
}

func (a *app) rsaKeygenCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an RSA key pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.cfg.Source()
			if err != nil {
				return err
			}
			params := a.cfg.Params()
			factory := a.primeFactory(src, params.Width, false)
			gen, err := factory(0)
			if err != nil {
				return err
			}
			opts := []rsa.Option{rsa.WithMaxAttempts(params.MaxAttempts)}
			if a.cfg.Workers > 1 {
				second, err := factory(1)
				if err != nil {
					return err
				}
				opts = append(opts, rsa.WithParallel(second))
			}

			r := rsa.New(gen, opts...)
			if err := r.Generate(cmd.Context()); err != nil {
				return err
			}
			defer r.Destroy()

			pub, err := wire.MarshalRSAPublicKey(r.Public)
			if err != nil {
				return err
			}
			priv, err := wire.MarshalRSAPrivateKey(r.Private)
			if err != nil {
				return err
			}
			defer utils.Zeroize(priv)

			format := OutputFormat(a.format)
			return writeJSON(cmd, RSAKeyPairExport{
				SecurityLevel: a.cfg.Level,
				Bits:          r.Public.N.BitLen(),
				PublicKey:     encodeBytes(pub, format),
				PrivateKey:    encodeBytes(priv, format),
				CreatedAt:     timestamp(),
				Checksum:      encodeBytes(keyChecksum(pub, priv), format),
			}, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file")
	return cmd
}

func (a *app) rsaEncryptCmd() *cobra.Command {
	var (
		keyFile string
		message string
		input   string
		output  string
	)
	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a message under a public key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keyFile == "" {
				return errors.New("--public-key is required")
			}
			msg := []byte(message)
			if input != "" {
				var err error
				if msg, err = readInput(input); err != nil {
					return err
				}
			}

			data, err := loadField(keyFile, "public_key")
			if err != nil {
				return err
			}
			pub, err := wire.UnmarshalRSAPublicKey(data)
			if err != nil {
				return err
			}
			size, err := blockSize(pub.N.BitLen())
			if err != nil {
				return err
			}

			blocks, err := rsa.New(nil).EncryptVector(packBlocks(msg, size), pub)
			if err != nil {
				return err
			}
			ct, err := wire.MarshalCiphertext(blocks)
			if err != nil {
				return err
			}
			log.WithFields(log.Fields{
				"bytes":  len(msg),
				"blocks": len(blocks),
			}).Debug("message encrypted")

			return writeJSON(cmd, RSACiphertextExport{
				Ciphertext: encodeBytes(ct, OutputFormat(a.format)),
				Length:     len(msg),
				BlockSize:  size,
			}, output)
		},
	}
	cmd.Flags().StringVarP(&keyFile, "public-key", "k", "", "public key or key pair file")
	cmd.Flags().StringVarP(&message, "message", "m", "", "message to encrypt")
	cmd.Flags().StringVarP(&input, "input", "i", "", "read the message from a file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file")
	return cmd
}

func (a *app) loadRSAPrivateKey(filename string) (cml.RSAPrivateKey, error) {
	var export RSAKeyPairExport
	if err := loadJSON(filename, &export); err != nil {
		return cml.RSAPrivateKey{}, err
	}
	priv, err := decodeString(export.PrivateKey)
	if err != nil {
		return cml.RSAPrivateKey{}, errors.Wrap(err, "private key")
	}
	defer utils.Zeroize(priv)

	if export.Checksum != "" {
		pub, err := decodeString(export.PublicKey)
		if err != nil {
			return cml.RSAPrivateKey{}, errors.Wrap(err, "public key")
		}
		want, err := decodeString(export.Checksum)
		if err != nil {
			return cml.RSAPrivateKey{}, errors.Wrap(err, "checksum")
		}
		if !utils.ConstantTimeEqual(want, keyChecksum(pub, priv)) {
			return cml.RSAPrivateKey{}, errors.Errorf("%s: key pair checksum mismatch", filename)
		}
	}
	return wire.UnmarshalRSAPrivateKey(priv)
}

func (a *app) rsaDecryptCmd() *cobra.Command {
	var (
		keyFile string
		ctFile  string
		output  string
	)
	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt a message with a private key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keyFile == "" || ctFile == "" {
				return errors.New("--private-key and --ciphertext are required")
			}
			priv, err := a.loadRSAPrivateKey(keyFile)
			if err != nil {
				return err
			}

			var export RSACiphertextExport
			if err := loadJSON(ctFile, &export); err != nil {
				return err
			}
			if size, err := blockSize(priv.N.BitLen()); err != nil {
				return err
			} else if export.BlockSize != size {
				return errors.Errorf("block size %d does not match the %d-bit key", export.BlockSize, priv.N.BitLen())
			}
			data, err := decodeString(export.Ciphertext)
			if err != nil {
				return errors.Wrap(err, "ciphertext")
			}
			blocks, err := wire.UnmarshalCiphertext(data)
			if err != nil {
				return err
			}

			r := rsa.New(nil)
			r.Private = priv
			defer r.Destroy()
			words, err := r.DecryptVector(blocks)
			if err != nil {
				return err
			}
			msg, err := unpackBlocks(words, export.BlockSize, export.Length)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), msg, output)
		},
	}
	cmd.Flags().StringVarP(&keyFile, "private-key", "k", "", "key pair file written by 'rsa keygen'")
	cmd.Flags().StringVarP(&ctFile, "ciphertext", "c", "", "ciphertext file written by 'rsa encrypt'")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file")
	return cmd
}
