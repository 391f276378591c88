package transaction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	opsdb "github.com/Maphikza/iqube-ops/internal/database"
	"github.com/Maphikza/iqube-ops/internal/keyvault"
	"github.com/Maphikza/iqube-ops/lib/explorer"
)

type fakeSource struct {
	fees         explorer.FeeEstimates
	feesErr      error
	utxos        []explorer.Utxo
	txs          map[string]string
	broadcast    []string
	broadcastErr error
}

func (f *fakeSource) FeeEstimates(ctx context.Context) (explorer.FeeEstimates, error) {
	return f.fees, f.feesErr
}

func (f *fakeSource) UTXOs(ctx context.Context, address string) ([]explorer.Utxo, error) {
	return f.utxos, nil
}

func (f *fakeSource) TxHex(ctx context.Context, txid string) (string, error) {
	h, ok := f.txs[txid]
	if !ok {
		return "", explorer.ErrNotFound
	}
	return h, nil
}

func (f *fakeSource) Broadcast(ctx context.Context, txHex string) (string, error) {
	f.broadcast = append(f.broadcast, txHex)
	if f.broadcastErr != nil {
		return "", f.broadcastErr
	}
	tx, err := DecodeTx(txHex)
	if err != nil {
		return "", err
	}
	return tx.TxHash().String(), nil
}

func newSigner(t *testing.T) *keyvault.KeySigner {
	t.Helper()
	k, err := keyvault.GenerateKey(&chaincfg.TestNet3Params)
	require.NoError(t, err)
	s, err := keyvault.NewKeySigner(k.WIF, &chaincfg.TestNet3Params)
	require.NoError(t, err)
	return s
}

// fundingSource returns a source whose address holds outputs of 10,000 and
// 50,000 sats from a single funding transaction.
func fundingSource(t *testing.T, signer keyvault.Signer) (*fakeSource, *wire.MsgTx) {
	t.Helper()
	pkScript, err := txscript.PayToAddrScript(signer.Address())
	require.NoError(t, err)

	funding := wire.NewMsgTx(2)
	funding.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{7}, 0), nil, nil))
	funding.AddTxOut(wire.NewTxOut(10000, pkScript))
	funding.AddTxOut(wire.NewTxOut(50000, pkScript))
	fundingHex, err := EncodeTx(funding)
	require.NoError(t, err)

	txid := funding.TxHash().String()
	return &fakeSource{
		fees: explorer.FeeEstimates{"1": 4.2, "2": 3},
		utxos: []explorer.Utxo{
			{TxID: txid, Vout: 0, Value: 10000},
			{TxID: txid, Vout: 1, Value: 50000},
		},
		txs: map[string]string{txid: fundingHex},
	}, funding
}

func TestFeeRateFromEstimates(t *testing.T) {
	rate, ok := FeeRateFromEstimates(explorer.FeeEstimates{"1": 12.3, "2": 3})
	assert.True(t, ok)
	assert.Equal(t, int64(13), rate)

	rate, ok = FeeRateFromEstimates(explorer.FeeEstimates{"2": 4.1, "6": 1})
	assert.True(t, ok)
	assert.Equal(t, int64(5), rate)

	_, ok = FeeRateFromEstimates(explorer.FeeEstimates{"6": 1})
	assert.False(t, ok)
}

func TestGetFeeRateFallsBackToDefault(t *testing.T) {
	src := &fakeSource{feesErr: errors.New("upstream down")}
	assert.Equal(t, int64(5), GetFeeRate(context.Background(), src))

	src = &fakeSource{fees: explorer.FeeEstimates{}}
	assert.Equal(t, int64(5), GetFeeRate(context.Background(), src))
}

func TestSelectLargest(t *testing.T) {
	u, err := SelectLargest([]explorer.Utxo{
		{TxID: "a", Value: 10000},
		{TxID: "b", Value: 50000},
		{TxID: "c", Value: 20000},
	})
	require.NoError(t, err)
	assert.Equal(t, "b", u.TxID)

	_, err = SelectLargest(nil)
	assert.ErrorIs(t, err, ErrNoUTXOs)
}

func TestEstimateVSize(t *testing.T) {
	assert.Equal(t, int64(110), EstimateVSize(1, 1))
}

func TestPlanSpend(t *testing.T) {
	plan, err := PlanSpend("tb1qexample", []explorer.Utxo{{TxID: "a", Value: 50000}}, 5)
	require.NoError(t, err)
	assert.Equal(t, btcutil.Amount(550), plan.Fee)
	assert.Equal(t, btcutil.Amount(49350), plan.Output)
}

func TestPlanSpendDust(t *testing.T) {
	// 1196 - 550 - 100 = 546, which is not above the threshold.
	_, err := PlanSpend("tb1qexample", []explorer.Utxo{{TxID: "a", Value: 1196}}, 5)
	assert.ErrorIs(t, err, ErrDustOutput)

	plan, err := PlanSpend("tb1qexample", []explorer.Utxo{{TxID: "a", Value: 1197}}, 5)
	require.NoError(t, err)
	assert.Equal(t, btcutil.Amount(547), plan.Output)
}

func TestSendSpendsLargestBackToSelf(t *testing.T) {
	signer := newSigner(t)
	src, funding := fundingSource(t, signer)

	store, err := opsdb.InitSQLiteDB(":memory:")
	require.NoError(t, err)
	defer store.Close()

	res, err := NewSender(src, store).Send(context.Background(), signer)
	require.NoError(t, err)
	require.Len(t, src.broadcast, 1)

	tx, err := DecodeTx(src.broadcast[0])
	require.NoError(t, err)
	require.Len(t, tx.TxIn, 1)
	require.Len(t, tx.TxOut, 1)
	assert.Equal(t, funding.TxHash(), tx.TxIn[0].PreviousOutPoint.Hash)
	assert.Equal(t, uint32(1), tx.TxIn[0].PreviousOutPoint.Index)
	assert.Equal(t, funding.TxOut[1].PkScript, tx.TxOut[0].PkScript)

	// rate ceil(4.2) = 5, fee 110 * 5 = 550, buffer 100
	assert.Equal(t, int64(49350), tx.TxOut[0].Value)
	assert.Equal(t, tx.TxHash().String(), res.TxID)

	rec, err := store.GetBroadcast(res.TxID)
	require.NoError(t, err)
	assert.Equal(t, opsdb.BroadcastSent, rec.Status)
	assert.Equal(t, int64(550), rec.Fee)
}

func TestSendSurfacesUpstreamRejection(t *testing.T) {
	signer := newSigner(t)
	src, _ := fundingSource(t, signer)
	src.broadcastErr = &explorer.UpstreamError{Status: 400, Body: "bad-txns-inputs-missingorspent"}

	store, err := opsdb.InitSQLiteDB(":memory:")
	require.NoError(t, err)
	defer store.Close()

	_, err = NewSender(src, store).Send(context.Background(), signer)
	var ue *explorer.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 400, ue.Status)

	tx, err := DecodeTx(src.broadcast[0])
	require.NoError(t, err)
	rec, err := store.GetBroadcast(tx.TxHash().String())
	require.NoError(t, err)
	assert.Equal(t, opsdb.BroadcastFailed, rec.Status)
}

func TestSendWithClosedSession(t *testing.T) {
	params := &chaincfg.TestNet3Params
	k, err := keyvault.GenerateKey(params)
	require.NoError(t, err)
	v, err := keyvault.Seal(k.WIF, "pw", params)
	require.NoError(t, err)
	sess, err := v.Open("pw", time.Minute, params)
	require.NoError(t, err)

	src, _ := fundingSource(t, sess)
	sess.Close()

	assert.NotPanics(t, func() {
		_, err = NewSender(src, nil).Send(context.Background(), sess)
	})
	assert.ErrorIs(t, err, keyvault.ErrSessionExpired)
	assert.Empty(t, src.broadcast)
}

type addresslessSigner struct{ keyvault.Signer }

func (addresslessSigner) Address() *btcutil.AddressWitnessPubKeyHash { return nil }

func TestSendWithoutAddress(t *testing.T) {
	var err error
	assert.NotPanics(t, func() {
		_, err = NewSender(&fakeSource{}, nil).Send(context.Background(), addresslessSigner{newSigner(t)})
	})
	assert.ErrorIs(t, err, keyvault.ErrSessionExpired)
}

func TestSenderUsesFeePolicy(t *testing.T) {
	signer := newSigner(t)
	src, _ := fundingSource(t, signer)
	src.feesErr = errors.New("upstream down")

	sender := NewSender(src, nil)
	sender.Policy = FeePolicy{DefaultFeeRate: 10, FeeBuffer: 250, DustLimit: 1000}

	res, err := sender.Send(context.Background(), signer)
	require.NoError(t, err)

	// 110 vB * 10 sat/vB = 1100, plus a 250 sat buffer
	assert.Equal(t, int64(10), res.Plan.FeeRate)
	assert.Equal(t, btcutil.Amount(1100), res.Plan.Fee)
	assert.Equal(t, btcutil.Amount(50000-1100-250), res.Plan.Output)
}

func TestFeePolicyPlanSpend(t *testing.T) {
	p := FeePolicy{DefaultFeeRate: 2, FeeBuffer: 0, DustLimit: 1000}

	// 1550 - 550 = 1000, which is not above the configured limit.
	_, err := p.PlanSpend("tb1qexample", []explorer.Utxo{{TxID: "a", Value: 1550}}, 5)
	assert.ErrorIs(t, err, ErrDustOutput)

	plan, err := p.PlanSpend("tb1qexample", []explorer.Utxo{{TxID: "a", Value: 1551}}, 5)
	require.NoError(t, err)
	assert.Equal(t, btcutil.Amount(1001), plan.Output)

	assert.Equal(t, int64(2), p.FeeRate(context.Background(), &fakeSource{feesErr: errors.New("down")}))
}

func TestFeePolicyZeroValueUsesDefaults(t *testing.T) {
	var p FeePolicy
	assert.Equal(t, DefaultFeeRate, p.FeeRate(context.Background(), &fakeSource{}))

	_, err := p.PlanSpend("tb1qexample", []explorer.Utxo{{TxID: "a", Value: 1096}}, 5)
	assert.ErrorIs(t, err, ErrDustOutput)
}

func TestSendNoUTXOs(t *testing.T) {
	signer := newSigner(t)
	_, err := NewSender(&fakeSource{}, nil).Send(context.Background(), signer)
	assert.ErrorIs(t, err, ErrNoUTXOs)
}

func TestBuildRejectsMismatchedPrevOut(t *testing.T) {
	signer := newSigner(t)
	_, funding := fundingSource(t, signer)

	plan := Plan{
		UTXO:   explorer.Utxo{TxID: funding.TxHash().String(), Vout: 1, Value: 49999},
		Output: 40000,
	}
	_, err := BuildAndSign(plan, funding, signer, false)
	assert.ErrorIs(t, err, ErrPrevOutMismatch)

	plan.UTXO.Vout = 5
	_, err = BuildAndSign(plan, funding, signer, false)
	assert.ErrorIs(t, err, ErrPrevOutMismatch)
}
