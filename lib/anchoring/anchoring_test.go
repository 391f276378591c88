package anchoring

import (
	"context"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	opsdb "github.com/Maphikza/iqube-ops/internal/database"
	"github.com/Maphikza/iqube-ops/internal/ledger"
	"github.com/Maphikza/iqube-ops/lib/explorer"
	"github.com/Maphikza/iqube-ops/lib/transaction"
)

var ids = ledger.DefaultOptions().ServiceIDs

func newService(t *testing.T, mt *ledger.MemoryTransport) (*Service, *opsdb.Store) {
	t.Helper()
	store, err := opsdb.InitSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewService(ledger.NewClient(mt, ledger.DefaultOptions()), WithRecorder(store)), store
}

type capture struct{ subjects []string }

func (c *capture) Publish(subject string, v interface{}) error {
	c.subjects = append(c.subjects, subject)
	return nil
}

func TestSubmitForAnchoringBatchesAndAnchors(t *testing.T) {
	mt := ledger.NewMemoryTransport().
		On(ids[ledger.ProofOfState], "issue_receipt", "receipt_1").
		On(ids[ledger.ProofOfState], "batch", "deadbeef").
		On(ids[ledger.ProofOfState], "anchor", "Anchored batch deadbeef")
	svc, store := newService(t, mt)
	events := &capture{}
	WithPublisher(events)(svc)

	res, err := svc.SubmitForAnchoring(context.Background(), "hash-1", "meta")
	require.NoError(t, err)
	assert.Equal(t, "receipt_1", res.ReceiptID)
	assert.Equal(t, "deadbeef", res.BatchID)
	assert.Len(t, mt.Calls("anchor"), 1)
	assert.Equal(t, []interface{}{"hash-1"}, mt.Calls("issue_receipt")[0].Args)

	results, err := store.RecentResults(10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, KindSubmit, results[0].Type)
	assert.Equal(t, opsdb.ResultSuccess, results[0].Status)
	assert.Equal(t, []string{KindSubmit}, events.subjects)
}

func TestSubmitForAnchoringNothingToBatch(t *testing.T) {
	mt := ledger.NewMemoryTransport().
		On(ids[ledger.ProofOfState], "issue_receipt", "receipt_2").
		On(ids[ledger.ProofOfState], "batch", "No pending receipts")
	svc, _ := newService(t, mt)

	res, err := svc.SubmitForAnchoring(context.Background(), "hash-2", "")
	require.NoError(t, err)
	assert.Equal(t, "receipt_2", res.ReceiptID)
	assert.Empty(t, res.BatchID)
	assert.Empty(t, mt.Calls("anchor"))
}

func TestSubmitForAnchoringPropagatesFailure(t *testing.T) {
	mt := ledger.NewMemoryTransport().Fail(ids[ledger.ProofOfState], "issue_receipt", errors.New("replica unreachable"))
	svc, store := newService(t, mt)
	events := &capture{}
	WithPublisher(events)(svc)

	_, err := svc.SubmitForAnchoring(context.Background(), "hash-3", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replica unreachable")

	results, err := store.RecentResults(10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, opsdb.ResultError, results[0].Status)
	assert.Empty(t, events.subjects)
}

func TestMintOnLedgerRejectsEmptyReceipt(t *testing.T) {
	mt := ledger.NewMemoryTransport().On(ids[ledger.ProofOfState], "issue_receipt", "")
	svc, _ := newService(t, mt)

	_, err := svc.MintOnLedger(context.Background(), "h")
	assert.ErrorIs(t, err, ErrEmptyReceipt)
}

func TestAnchorBatchesNow(t *testing.T) {
	mt := ledger.NewMemoryTransport().
		On(ids[ledger.ProofOfState], "batch", "root").
		On(ids[ledger.ProofOfState], "anchor", "No batches to anchor")
	svc, _ := newService(t, mt)

	res, err := svc.AnchorBatchesNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "root", res.BatchRoot)
	assert.Equal(t, "No batches to anchor", res.AnchorResult)
}

func TestSubmitCrossChainMessageEncodesPayload(t *testing.T) {
	mt := ledger.NewMemoryTransport().On(ids[ledger.CrossChain], "submit_dvn_message", "msg_1")
	svc, _ := newService(t, mt)

	id, err := svc.SubmitCrossChainMessage(context.Background(), 1, 137, "hi")
	require.NoError(t, err)
	assert.Equal(t, "msg_1", id)

	args := mt.Calls("submit_dvn_message")[0].Args
	assert.Equal(t, uint32(1), args[0])
	assert.Equal(t, uint32(137), args[1])
	assert.Equal(t, []byte("hi"), args[2])
	assert.Equal(t, DefaultSender, args[3])
}

func TestAttestMessageDefaultValidators(t *testing.T) {
	mt := ledger.NewMemoryTransport().On(ids[ledger.CrossChain], "submit_attestation", map[string]string{"Ok": "attested"})
	svc, _ := newService(t, mt)

	require.NoError(t, svc.AttestMessage(context.Background(), "msg_1", nil))
	calls := mt.Calls("submit_attestation")
	require.Len(t, calls, 2)
	assert.Equal(t, "v1", calls[0].Args[1])
	assert.Equal(t, []byte("sig:msg_1:v1"), calls[0].Args[2])
	assert.Equal(t, "v2", calls[1].Args[1])
}

func TestAttestMessageStopsOnServiceError(t *testing.T) {
	mt := ledger.NewMemoryTransport().On(ids[ledger.CrossChain], "submit_attestation", map[string]string{"Err": "Message not found"})
	svc, _ := newService(t, mt)

	err := svc.AttestMessage(context.Background(), "missing", []string{"a", "b"})
	require.Error(t, err)
	assert.True(t, ledger.IsServiceError(err))
	assert.Len(t, mt.Calls("submit_attestation"), 1)
}

func TestGetCrossChainMessageStatus(t *testing.T) {
	mt := ledger.NewMemoryTransport().
		On(ids[ledger.CrossChain], "get_message_attestations", []ledger.Attestation{{Validator: "v1"}, {Validator: "v2"}}).
		On(ids[ledger.CrossChain], "get_ready_messages", []ledger.DVNMessage{{ID: "msg_1"}})
	svc, _ := newService(t, mt)

	st, err := svc.GetCrossChainMessageStatus(context.Background(), "msg_1")
	require.NoError(t, err)
	assert.Equal(t, 2, st.Attestations)
	assert.True(t, st.Ready)

	st, err = svc.GetCrossChainMessageStatus(context.Background(), "msg_2")
	require.NoError(t, err)
	assert.False(t, st.Ready)
}

func TestMessageListsEmptyOnFailure(t *testing.T) {
	mt := ledger.NewMemoryTransport().
		Fail(ids[ledger.CrossChain], "get_pending_messages", errors.New("down")).
		Fail(ids[ledger.CrossChain], "get_ready_messages", errors.New("down"))
	svc, _ := newService(t, mt)

	assert.NotNil(t, svc.PendingMessages(context.Background()))
	assert.Empty(t, svc.PendingMessages(context.Background()))
	assert.Empty(t, svc.ReadyMessages(context.Background()))
}

func TestSupportedChains(t *testing.T) {
	mt := ledger.NewMemoryTransport().Fail(ids[ledger.EVMRPC], "get_supported_chains", errors.New("down"))
	svc, _ := newService(t, mt)
	assert.Len(t, svc.SupportedChains(context.Background()), 4)

	opts := ledger.DefaultOptions()
	opts.FallbackEnabled = false
	strict := NewService(ledger.NewClient(mt, opts))
	assert.Empty(t, strict.SupportedChains(context.Background()))
}

type fakeUTXOSource struct {
	utxos []explorer.Utxo
	txs   map[string]string
	hits  int
}

func (f *fakeUTXOSource) UTXOs(ctx context.Context, address string) ([]explorer.Utxo, error) {
	return f.utxos, nil
}

func (f *fakeUTXOSource) TxHex(ctx context.Context, txid string) (string, error) {
	f.hits++
	h, ok := f.txs[txid]
	if !ok {
		return "", explorer.ErrNotFound
	}
	return h, nil
}

func TestFetchSignerUTXOsRecoversScripts(t *testing.T) {
	funding := wire.NewMsgTx(2)
	funding.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{1}, 0), nil, nil))
	funding.AddTxOut(wire.NewTxOut(1000, []byte{0x00, 0x14, 0xaa}))
	funding.AddTxOut(wire.NewTxOut(2000, []byte{0x00, 0x14, 0xbb}))
	raw, err := transaction.EncodeTx(funding)
	require.NoError(t, err)
	txid := funding.TxHash().String()

	src := &fakeUTXOSource{
		utxos: []explorer.Utxo{{TxID: txid, Vout: 0, Value: 1000}, {TxID: txid, Vout: 1, Value: 2000}},
		txs:   map[string]string{txid: raw},
	}
	utxos, err := FetchSignerUTXOs(context.Background(), src, "tb1q")
	require.NoError(t, err)
	require.Len(t, utxos, 2)
	assert.Equal(t, []byte{0x00, 0x14, 0xbb}, utxos[1].ScriptPubKey)
	assert.Equal(t, uint64(2000), utxos[1].Amount)
	assert.Equal(t, 1, src.hits)

	src.utxos = append(src.utxos, explorer.Utxo{TxID: txid, Vout: 9})
	_, err = FetchSignerUTXOs(context.Background(), src, "tb1q")
	assert.ErrorIs(t, err, transaction.ErrPrevOutMismatch)
}

func TestCreateSignBroadcastAnchor(t *testing.T) {
	mt := ledger.NewMemoryTransport().
		On(ids[ledger.BTCSigner], "create_anchor_transaction", map[string]interface{}{"Ok": ledger.UnsignedTransaction{Locktime: 0}}).
		On(ids[ledger.BTCSigner], "sign_transaction", map[string]interface{}{"Ok": ledger.SignedTransaction{TxID: "t", RawTx: "0200"}}).
		On(ids[ledger.BTCSigner], "broadcast_transaction", map[string]string{"Ok": "txid_1"})
	svc, _ := newService(t, mt)

	txid, err := svc.CreateSignBroadcastAnchor(context.Background(), "root", nil, 1000, nil)
	require.NoError(t, err)
	assert.Equal(t, "txid_1", txid)
	assert.Equal(t, []interface{}{"0200"}, mt.Calls("broadcast_transaction")[0].Args)
}

func TestCreateSignBroadcastAnchorSignerError(t *testing.T) {
	mt := ledger.NewMemoryTransport().
		On(ids[ledger.BTCSigner], "create_anchor_transaction", map[string]string{"Err": "Insufficient funds"})
	svc, _ := newService(t, mt)

	_, err := svc.CreateSignBroadcastAnchor(context.Background(), "root", nil, 1000, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Insufficient funds")
	assert.Empty(t, mt.Calls("sign_transaction"))
}
