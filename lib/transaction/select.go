package transaction

import (
	"golang.org/x/exp/slices"

	"github.com/Maphikza/iqube-ops/lib/explorer"
)

// SelectLargest returns the single UTXO with the greatest value. The first
// one wins a tie.
func SelectLargest(utxos []explorer.Utxo) (explorer.Utxo, error) {
	if len(utxos) == 0 {
		return explorer.Utxo{}, ErrNoUTXOs
	}
	return slices.MaxFunc(utxos, func(a, b explorer.Utxo) int {
		switch {
		case a.Value < b.Value:
			return -1
		case a.Value > b.Value:
			return 1
		}
		return 0
	}), nil
}
