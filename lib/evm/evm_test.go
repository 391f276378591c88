package evm

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Maphikza/iqube-ops/internal/ledger"
)

var (
	contract = common.HexToAddress("0x632E1d32e34F0A690635BBcbec0D066daa448ede")
	account  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	amoy     = ChainParams{ChainID: 80002, ChainName: "Polygon Amoy", RPCURLs: []string{"https://rpc-amoy.polygon.technology"}}
)

func transferLog(addr common.Address, tokenID int64) *types.Log {
	return &types.Log{
		Address: addr,
		Topics: []common.Hash{
			transferTopic,
			{},
			common.BytesToHash(account.Bytes()),
			common.BigToHash(big.NewInt(tokenID)),
		},
	}
}

type fakeBackend struct {
	t       *testing.T
	receipt *types.Receipt
	views   map[string][]interface{}
}

func (b *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if b.receipt == nil {
		return nil, ethereum.NotFound
	}
	return b.receipt, nil
}

func (b *fakeBackend) CodeAt(ctx context.Context, acct common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x1}, nil
}

func (b *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	parsed, err := parseQubeABI()
	require.NoError(b.t, err)
	method, err := parsed.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	vals, ok := b.views[method.Name]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return method.Outputs.Pack(vals...)
}

type fakeWallet struct {
	known    map[uint64]bool
	current  uint64
	added    []ChainParams
	switches int
	sent     [][]byte
	backend  *fakeBackend
}

func (w *fakeWallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return []common.Address{account}, nil
}

func (w *fakeWallet) SwitchChain(ctx context.Context, chainID uint64) error {
	w.switches++
	if !w.known[chainID] {
		return ErrUnrecognizedChain
	}
	w.current = chainID
	return nil
}

func (w *fakeWallet) AddChain(ctx context.Context, params ChainParams) error {
	w.added = append(w.added, params)
	w.known[params.ChainID] = true
	return nil
}

func (w *fakeWallet) SendTransaction(ctx context.Context, from, to common.Address, data []byte) (*types.Transaction, error) {
	w.sent = append(w.sent, data)
	return types.NewTx(&types.LegacyTx{Nonce: 1, To: &to, Gas: 21000, GasPrice: big.NewInt(1), Data: data}), nil
}

func (w *fakeWallet) Backend() Backend { return w.backend }

func newFakeWallet(t *testing.T) *fakeWallet {
	return &fakeWallet{
		known: map[uint64]bool{1: true},
		backend: &fakeBackend{
			t: t,
			receipt: &types.Receipt{
				Status:      types.ReceiptStatusSuccessful,
				BlockNumber: big.NewInt(123),
				Logs:        []*types.Log{transferLog(contract, 7)},
			},
			views: map[string][]interface{}{
				"tokenURI":         {"ipfs://stored"},
				"ownerOf":          {account},
				"getEncryptionKey": {"k"},
			},
		},
	}
}

func TestParseTransferTokenID(t *testing.T) {
	other := common.HexToAddress("0x01")
	id, err := ParseTransferTokenID([]*types.Log{
		transferLog(other, 1),
		{Address: contract, Topics: []common.Hash{{0x01}}},
		transferLog(contract, 4242),
	}, contract)
	require.NoError(t, err)
	assert.Equal(t, int64(4242), id.Int64())

	_, err = ParseTransferTokenID(nil, contract)
	assert.ErrorIs(t, err, ErrNoTokenID)
}

func TestEnsureChainAddsUnknownChain(t *testing.T) {
	w := newFakeWallet(t)
	m, err := NewMinter(w, amoy, contract)
	require.NoError(t, err)

	require.NoError(t, m.EnsureChain(context.Background()))
	require.Len(t, w.added, 1)
	assert.Equal(t, uint64(80002), w.added[0].ChainID)
	assert.Equal(t, 2, w.switches)
	assert.Equal(t, uint64(80002), w.current)
}

func TestMintRecoversTokenAndViews(t *testing.T) {
	w := newFakeWallet(t)
	m, err := NewMinter(w, amoy, contract)
	require.NoError(t, err)
	m.now = func() time.Time { return time.Unix(0, 42) }

	res, err := m.Mint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ipfs://iqube-42", res.MetaURI)
	assert.Len(t, res.EncryptionKey, 64)
	assert.Equal(t, uint64(123), res.BlockNumber)
	require.NotNil(t, res.TokenID)
	assert.Equal(t, int64(7), res.TokenID.Int64())
	assert.Equal(t, "ipfs://stored", res.TokenURI)
	assert.Equal(t, account.Hex(), res.Owner)
	assert.Equal(t, "k", res.StoredKey)

	require.Len(t, w.sent, 1)
	parsed, err := parseQubeABI()
	require.NoError(t, err)
	args, err := parsed.Methods["mintQube"].Inputs.Unpack(w.sent[0][4:])
	require.NoError(t, err)
	assert.Equal(t, "ipfs://iqube-42", args[0])
	assert.Equal(t, res.EncryptionKey, args[1])
}

func TestMintSwallowsViewErrors(t *testing.T) {
	w := newFakeWallet(t)
	w.backend.views = map[string][]interface{}{}
	m, err := NewMinter(w, amoy, contract)
	require.NoError(t, err)

	res, err := m.Mint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.TokenID.Int64())
	assert.Empty(t, res.TokenURI)
	assert.Empty(t, res.Owner)
}

func TestMintReverted(t *testing.T) {
	w := newFakeWallet(t)
	w.backend.receipt.Status = types.ReceiptStatusFailed
	m, err := NewMinter(w, amoy, contract)
	require.NoError(t, err)

	res, err := m.Mint(context.Background())
	assert.ErrorIs(t, err, ErrReverted)
	assert.NotEmpty(t, res.TxHash)
}

func TestTransactionStatus(t *testing.T) {
	b := &fakeBackend{t: t, receipt: &types.Receipt{Status: 1, BlockNumber: big.NewInt(18500000), GasUsed: 21000}}
	hash := "0xab" + strings.Repeat("00", 31)

	st, err := TransactionStatus(context.Background(), b, hash)
	require.NoError(t, err)
	assert.Equal(t, TxStatus{Confirmed: true, BlockNumber: 18500000, GasUsed: 21000}, st)

	b.receipt = nil
	st, err = TransactionStatus(context.Background(), b, hash)
	require.NoError(t, err)
	assert.False(t, st.Confirmed)

	_, err = TransactionStatus(context.Background(), b, "0x1234")
	assert.Error(t, err)
}

func TestLedgerTransactionStatus(t *testing.T) {
	ids := ledger.DefaultOptions().ServiceIDs
	mt := ledger.NewMemoryTransport().On(ids[ledger.EVMRPC], "get_transaction_receipt", map[string]interface{}{
		"Ok": ledger.EVMTransactionReceipt{Status: true, BlockNumber: 99, GasUsed: 50000},
	})
	st, err := LedgerTransactionStatus(context.Background(), ledger.NewClient(mt, ledger.DefaultOptions()), 1, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, TxStatus{Confirmed: true, BlockNumber: 99, GasUsed: 50000}, st)
}

type fakeEthClient struct {
	*fakeBackend
	chainID int64
	closed  bool
}

func (c *fakeEthClient) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(c.chainID), nil
}

func (c *fakeEthClient) PendingNonceAt(ctx context.Context, a common.Address) (uint64, error) {
	return 0, nil
}

func (c *fakeEthClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (c *fakeEthClient) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return 21000, nil
}

func (c *fakeEthClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return nil
}

func (c *fakeEthClient) Close() { c.closed = true }

func TestRPCWalletSwitchAndAdd(t *testing.T) {
	chains := map[string]int64{"http://mainnet": 1, "http://amoy": 80002}
	dial := func(ctx context.Context, url string) (EthClient, error) {
		id, ok := chains[url]
		if !ok {
			return nil, errors.New("dial failed")
		}
		return &fakeEthClient{fakeBackend: &fakeBackend{t: t}, chainID: id}, nil
	}
	key := "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

	w, err := NewRPCWallet(context.Background(), key, "http://mainnet", dial)
	require.NoError(t, err)
	assert.ErrorIs(t, w.SwitchChain(context.Background(), 80002), ErrUnrecognizedChain)

	bad := ChainParams{ChainID: 80002, RPCURLs: []string{"http://mainnet"}}
	assert.Error(t, w.AddChain(context.Background(), bad))

	require.NoError(t, w.AddChain(context.Background(), ChainParams{ChainID: 80002, RPCURLs: []string{"http://amoy"}}))
	require.NoError(t, w.SwitchChain(context.Background(), 80002))

	accts, err := w.RequestAccounts(context.Background())
	require.NoError(t, err)
	tx, err := w.SendTransaction(context.Background(), accts[0], contract, []byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(80002), tx.ChainId())
}

func TestChainParamsHexID(t *testing.T) {
	assert.Equal(t, "0x13882", amoy.HexChainID())
}
