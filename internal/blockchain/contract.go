package blockchain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const registryABI = `[
  {"type":"function","name":"issueCertificate","stateMutability":"nonpayable",
   "inputs":[
     {"name":"_studentName","type":"string"},
     {"name":"_eventId","type":"string"},
     {"name":"_ipfshash","type":"string"},
     {"name":"_issuedTo","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"verifyCertificate","stateMutability":"view",
   "inputs":[{"name":"_certId","type":"uint256"}],
   "outputs":[{"name":"","type":"tuple","components":[
     {"name":"certId","type":"uint256"},
     {"name":"studentName","type":"string"},
     {"name":"eventId","type":"string"},
     {"name":"ipfshash","type":"string"},
     {"name":"issuedTo","type":"address"},
     {"name":"issuedAt","type":"uint256"}]}]},
  {"type":"event","name":"CertificateIssued","anonymous":false,
   "inputs":[
     {"name":"certId","type":"uint256","indexed":false},
     {"name":"studentName","type":"string","indexed":false},
     {"name":"eventId","type":"string","indexed":false},
     {"name":"ipfshash","type":"string","indexed":false},
     {"name":"issuedTo","type":"address","indexed":false}]}
]`

var contractABI = mustParseABI(registryABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid registry ABI: %v", err))
	}
	return parsed
}

// certificateRecord mirrors the tuple returned by verifyCertificate.
type certificateRecord struct {
	CertId      *big.Int
	StudentName string
	EventId     string
	Ipfshash    string
	IssuedTo    common.Address
	IssuedAt    *big.Int
}

func packIssue(req IssueRequest) ([]byte, error) {
	return contractABI.Pack("issueCertificate", req.StudentName, req.EventRef, req.ContentHash, common.HexToAddress(req.Recipient))
}

func packVerify(certID *big.Int) ([]byte, error) {
	return contractABI.Pack("verifyCertificate", certID)
}

func unpackVerify(data []byte) (*certificateRecord, error) {
	out, err := contractABI.Unpack("verifyCertificate", data)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty verifyCertificate result")
	}
	rec := *abi.ConvertType(out[0], new(certificateRecord)).(*certificateRecord)
	return &rec, nil
}

// certIDFromReceipt finds the CertificateIssued log emitted by the registry and returns its id.
func certIDFromReceipt(receipt *types.Receipt, registry common.Address) (*big.Int, bool) {
	event := contractABI.Events["CertificateIssued"]
	for _, lg := range receipt.Logs {
		if lg.Address != registry || len(lg.Topics) == 0 || lg.Topics[0] != event.ID {
			continue
		}
		values, err := event.Inputs.Unpack(lg.Data)
		if err != nil || len(values) == 0 {
			continue
		}
		if id, ok := values[0].(*big.Int); ok {
			return id, true
		}
	}
	return nil, false
}
