//go:build !linux

package partition

func exchange(staged, target string) error {
	return errExchangeUnsupported
}
