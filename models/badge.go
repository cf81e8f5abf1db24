package models

import "strings"

// Badge metadata catalog keyed by badge level. The CIDs must match the ones
// configured in the BadgeNFT contract.
var BadgeLevelURIs = map[int]string{
	1:  "ipfs://bafkreihpk4e7are4vy2ta2jjykezijqwnhi2mrflr6bxnhn4o36isudahq",
	2:  "ipfs://bafkreihvru352dw5b4qyslzvkcsf5qm7cw3k3y262gcq4e4evvbqzulf6q",
	3:  "ipfs://bafkreic6lhhm4j62em3jzepbqg3ughcpv7izovujxvjvq4qy6u7qauhwoq",
	4:  "ipfs://bafkreigzbzacffjlnermzlnynei552tf3djuxgsixsro4hvmpcuyohonf4",
	5:  "ipfs://bafkreihmqr3haexn5wmktsfhejotpwwpuc7urnr3cvi7h3p57ggz2dns2i",
	6:  "ipfs://bafkreidhrxrkkca5livv7zr6r4dvoexgyg4i2t4mw4t5qpdf2a6hlfezra",
	7:  "ipfs://bafkreiagxgdvyvxv5rop66gtuvkzgaw4pei2zph2lxb24kxne4bfmfbsle",
	8:  "ipfs://bafkreibwqzpefyq3gdj3mqt53m6yqrt2ttwa37osx7qnp44prcfjdcd3mq",
	9:  "ipfs://bafkreighkh6ww4u3354ja6xx4ahct7n2lx6ba3blimfff4g5s2mgox3u2q",
	10: "ipfs://bafkreie5qf24hp4xm7l2gjbjkjr4re7ubs7uoqm6sxo3wkyri3kbghi2qe",
}

// BadgeImageURL resolves a badge level to an HTTP gateway URL, or "" if the
// level has no configured badge.
func BadgeImageURL(level int) string {
	uri, ok := BadgeLevelURIs[level]
	if !ok {
		return ""
	}
	return IPFSToHTTP(uri)
}

// IPFSToHTTP converts an ipfs:// URI to a public gateway URL. Other URIs pass
// through unchanged.
func IPFSToHTTP(uri string) string {
	if cid, ok := strings.CutPrefix(uri, "ipfs://"); ok {
		return "https://ipfs.io/ipfs/" + cid
	}
	return uri
}
