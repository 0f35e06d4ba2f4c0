package devnet

import (
	"errors"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/tidwall/gjson"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// Genesis describes the initial devnet ledger.
//
//	{
//	  "chain": "ethereum",
//	  "alloc": {"0x...": "1000000000000000000"},
//	  "token": {
//	    "name": "Lido DAO Token", "symbol": "LDO", "decimals": 18,
//	    "holdings": {"0x...": "5000000000000000000000"}
//	  }
//	}
type Genesis struct {
	ChainID vaa.ChainID
	// Alloc is the native balance of each account.
	Alloc map[common.Address]*uint256.Int
	Token TokenGenesis
}

type TokenGenesis struct {
	Name     string
	Symbol   string
	Decimals uint8
	Holdings map[common.Address]*uint256.Int
}

var ErrInvalidGenesis = errors.New("invalid genesis")

// DefaultGenesis funds the well-known accounts with 100 ether and gives the depositor
// 10000 tokens of an 18 decimal token on Ethereum.
func DefaultGenesis() *Genesis {
	ether := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(18))
	hundred := new(uint256.Int).Mul(ether, uint256.NewInt(100))

	g := &Genesis{
		ChainID: vaa.ChainIDEthereum,
		Alloc:   make(map[common.Address]*uint256.Int),
		Token: TokenGenesis{
			Name:     "Lido DAO Token",
			Symbol:   "LDO",
			Decimals: 18,
			Holdings: map[common.Address]*uint256.Int{
				Depositor(): new(uint256.Int).Mul(ether, uint256.NewInt(10_000)),
			},
		},
	}
	for _, a := range []common.Address{Deployer(), Owner(), Keeper(), Depositor()} {
		g.Alloc[a] = hundred.Clone()
	}
	return g
}

// ParseGenesis reads a genesis document. Missing sections fall back to DefaultGenesis.
func ParseGenesis(data []byte) (*Genesis, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: not valid json", ErrInvalidGenesis)
	}
	doc := gjson.ParseBytes(data)
	g := DefaultGenesis()

	if r := doc.Get("chain"); r.Exists() {
		chainID, err := parseChain(r)
		if err != nil {
			return nil, err
		}
		g.ChainID = chainID
	}

	if r := doc.Get("alloc"); r.Exists() {
		alloc, err := parseBalances(r)
		if err != nil {
			return nil, fmt.Errorf("alloc: %w", err)
		}
		g.Alloc = alloc
	}

	token := doc.Get("token")
	if !token.Exists() {
		return g, nil
	}
	if r := token.Get("name"); r.Exists() {
		g.Token.Name = r.String()
	}
	if r := token.Get("symbol"); r.Exists() {
		g.Token.Symbol = r.String()
	}
	if r := token.Get("decimals"); r.Exists() {
		if r.Type != gjson.Number || r.Uint() > math.MaxUint8 {
			return nil, fmt.Errorf("%w: token decimals must be a number below 256", ErrInvalidGenesis)
		}
		g.Token.Decimals = uint8(r.Uint())
	}
	if r := token.Get("holdings"); r.Exists() {
		holdings, err := parseBalances(r)
		if err != nil {
			return nil, fmt.Errorf("token holdings: %w", err)
		}
		g.Token.Holdings = holdings
	}
	return g, nil
}

func parseChain(r gjson.Result) (vaa.ChainID, error) {
	if r.Type == gjson.Number {
		if r.Uint() == 0 || r.Uint() > math.MaxUint16 {
			return vaa.ChainIDUnset, fmt.Errorf("%w: chain id %s out of range", ErrInvalidGenesis, r.Raw)
		}
		return vaa.ChainID(r.Uint()), nil
	}
	chainID, err := vaa.ChainIDFromString(r.String())
	if err != nil {
		return vaa.ChainIDUnset, fmt.Errorf("%w: %v", ErrInvalidGenesis, err)
	}
	return chainID, nil
}

func parseBalances(r gjson.Result) (map[common.Address]*uint256.Int, error) {
	if !r.IsObject() {
		return nil, fmt.Errorf("%w: expected an object of address to amount", ErrInvalidGenesis)
	}
	out := make(map[common.Address]*uint256.Int)
	var err error
	r.ForEach(func(key, value gjson.Result) bool {
		if !common.IsHexAddress(key.String()) {
			err = fmt.Errorf("%w: invalid address %q", ErrInvalidGenesis, key.String())
			return false
		}
		// amounts are strings so they survive json's float64 numbers
		amount, perr := uint256.FromDecimal(value.String())
		if perr != nil {
			err = fmt.Errorf("%w: invalid amount %q for %s: %v", ErrInvalidGenesis, value.String(), key.String(), perr)
			return false
		}
		out[common.HexToAddress(key.String())] = amount
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
