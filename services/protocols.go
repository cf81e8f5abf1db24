package services

import "strings"

// Protocol describes a supported DeFi protocol on the target network. Each
// protocol is addressable both by its native account id and its EVM address.
type Protocol struct {
	Name        string `json:"name"`
	NativeID    string `json:"native_id"`
	EVMAddress  string `json:"evm_address"`
	Category    string `json:"category"` // swap, liquidity, stake, lend
	Website     string `json:"website"`
	Description string `json:"description"`
	Logo        string `json:"logo,omitempty"`
}

// Protocols is the static registry of quest target protocols.
var Protocols = []Protocol{
	{
		Name:        "SaucerSwap Finance",
		NativeID:    "0.0.19264",
		EVMAddress:  "0x0000000000000000000000000000000000004b40",
		Category:    "swap",
		Website:     "https://testnet.saucerswap.finance/swap",
		Description: "Decentralized exchange for token swaps on Hedera Testnet",
		Logo:        "ipfs://bafkreid64ufj4jk7dih5qio5ve6gvprdmfmbgfdxmyxha454pbhdb2wh4m",
	},
	{
		Name:        "Bonzo Finance",
		NativeID:    "0.0.7154915",
		EVMAddress:  "0x118dd8f2c0f2375496df1e069af1141fa034251b",
		Category:    "lend",
		Website:     "https://testnet.bonzo.finance/",
		Description: "Lending and borrowing protocol on Hedera Testnet",
		Logo:        "ipfs://bafkreiex5codajdbxry4pj2eqhf23qi5yadqdkiptdxcqxwztw3cm2uabm",
	},
}

// ProtocolByAddress finds a protocol by EVM address, case-insensitive.
func ProtocolByAddress(address string) *Protocol {
	normalized := strings.ToLower(address)
	for i := range Protocols {
		if strings.ToLower(Protocols[i].EVMAddress) == normalized {
			return &Protocols[i]
		}
	}
	return nil
}

// ProtocolByNativeID finds a protocol by its native account id.
func ProtocolByNativeID(nativeID string) *Protocol {
	for i := range Protocols {
		if Protocols[i].NativeID == nativeID {
			return &Protocols[i]
		}
	}
	return nil
}

// ProtocolsByCategory filters the registry by quest category.
func ProtocolsByCategory(category string) []Protocol {
	var out []Protocol
	for _, p := range Protocols {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}
