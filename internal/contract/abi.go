package contract

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Marketplace entry points.
const (
	MethodCreateMarketItem = "createMarketItem"
	MethodCreateMarketSale = "createMarketSale"
	MethodFetchMarketItems = "fetchMarketItems"
	MethodFetchMyNFTs      = "fetchMyNFTs"
)

var requiredMethods = []string{
	MethodCreateMarketItem,
	MethodCreateMarketSale,
	MethodFetchMarketItems,
	MethodFetchMyNFTs,
}

const marketItemTuple = `{
	"internalType": "struct NFTMarketplace.MarketItem[]",
	"name": "",
	"type": "tuple[]",
	"components": [
		{"internalType": "uint256", "name": "itemId", "type": "uint256"},
		{"internalType": "address", "name": "nftContract", "type": "address"},
		{"internalType": "uint256", "name": "tokenId", "type": "uint256"},
		{"internalType": "address payable", "name": "seller", "type": "address"},
		{"internalType": "address payable", "name": "owner", "type": "address"},
		{"internalType": "uint256", "name": "price", "type": "uint256"},
		{"internalType": "bool", "name": "sold", "type": "bool"},
		{"internalType": "string", "name": "category", "type": "string"},
		{"internalType": "string", "name": "image", "type": "string"},
		{"internalType": "string", "name": "name", "type": "string"}
	]
}`

// MarketplaceABI is the default marketplace contract interface.
const MarketplaceABI = `[
{
	"inputs": [
		{"internalType": "address", "name": "nftContract", "type": "address"},
		{"internalType": "uint256", "name": "tokenId", "type": "uint256"},
		{"internalType": "uint256", "name": "price", "type": "uint256"},
		{"internalType": "string", "name": "category", "type": "string"},
		{"internalType": "string", "name": "image", "type": "string"},
		{"internalType": "string", "name": "name", "type": "string"}
	],
	"name": "createMarketItem",
	"outputs": [],
	"stateMutability": "payable",
	"type": "function"
},
{
	"inputs": [
		{"internalType": "address", "name": "nftContract", "type": "address"},
		{"internalType": "uint256", "name": "itemId", "type": "uint256"}
	],
	"name": "createMarketSale",
	"outputs": [],
	"stateMutability": "payable",
	"type": "function"
},
{
	"inputs": [],
	"name": "fetchMarketItems",
	"outputs": [` + marketItemTuple + `],
	"stateMutability": "view",
	"type": "function"
},
{
	"inputs": [],
	"name": "fetchMyNFTs",
	"outputs": [` + marketItemTuple + `],
	"stateMutability": "view",
	"type": "function"
}
]`

// ParseABI parses an ABI document and checks that it exposes every
// marketplace entry point.
func ParseABI(doc string) (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(doc))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("contract: parse abi: %w", err)
	}
	for _, m := range requiredMethods {
		if _, ok := parsed.Methods[m]; !ok {
			return abi.ABI{}, fmt.Errorf("contract: abi is missing method %s", m)
		}
	}
	return parsed, nil
}

// LoadABI reads the ABI from path, or returns the embedded default when path
// is empty. Hardhat/Truffle artifacts ({"abi": [...]}) are accepted as well
// as bare ABI arrays.
func LoadABI(path string) (abi.ABI, error) {
	if path == "" {
		return ParseABI(MarketplaceABI)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("contract: read abi file: %w", err)
	}

	var artifact struct {
		ABI json.RawMessage `json:"abi"`
	}
	if json.Unmarshal(data, &artifact) == nil && len(artifact.ABI) > 0 {
		data = artifact.ABI
	}
	return ParseABI(string(data))
}
