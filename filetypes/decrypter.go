package filetypes

import "github.com/GlintPay/gccs-vault/sops"

type Decrypter interface {
	Decrypt(data []byte) ([]byte, error)
}

type SopsDecrypter struct{}

func (SopsDecrypter) Decrypt(data []byte) ([]byte, error) {
	return sops.DecryptPayload(data)
}
