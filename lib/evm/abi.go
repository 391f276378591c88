package evm

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

const qubeABI = `[
	{"type":"function","name":"mintQube","stateMutability":"nonpayable",
	 "inputs":[{"name":"uri","type":"string"},{"name":"key","type":"string"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"tokenURI","stateMutability":"view",
	 "inputs":[{"name":"tokenId","type":"uint256"}],
	 "outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"ownerOf","stateMutability":"view",
	 "inputs":[{"name":"tokenId","type":"uint256"}],
	 "outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"getEncryptionKey","stateMutability":"view",
	 "inputs":[{"name":"tokenId","type":"uint256"}],
	 "outputs":[{"name":"","type":"string"}]},
	{"type":"event","name":"Transfer","anonymous":false,
	 "inputs":[{"name":"from","type":"address","indexed":true},
	           {"name":"to","type":"address","indexed":true},
	           {"name":"tokenId","type":"uint256","indexed":true}]}
]`

// transferTopic is keccak256("Transfer(address,address,uint256)").
var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

func parseQubeABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(qubeABI))
}
