package ethledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ruteri/dao-provisioning-backend/interfaces"
)

// ErrMissingArtifact is returned when a kind is deployed without a loaded artifact.
var ErrMissingArtifact = errors.New("missing contract artifact")

// ContractArtifact is a compiled contract as written by truffle, hardhat or foundry.
type ContractArtifact struct {
	ContractName string          `json:"contractName,omitempty"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     Bytecode        `json:"bytecode"`
}

// Bytecode accepts both a plain hex string and foundry's {"object": "0x..."} form.
type Bytecode struct {
	hex string
}

func (b *Bytecode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		b.hex = s
		return nil
	}

	var obj struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		b.hex = obj.Object
		return nil
	}

	return fmt.Errorf("bytecode must be a string or object with 'object' field")
}

func (b Bytecode) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.hex)
}

func (b Bytecode) String() string {
	return b.hex
}

// Bytes decodes the creation code.
func (b Bytecode) Bytes() ([]byte, error) {
	code := b.hex
	if code == "" || code == "0x" {
		return nil, fmt.Errorf("empty bytecode")
	}
	if !strings.HasPrefix(code, "0x") {
		code = "0x" + code
	}
	return hexutil.Decode(code)
}

// ParseArtifact decodes one artifact file's content.
func ParseArtifact(data []byte) (*ContractArtifact, error) {
	var a ContractArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse artifact: %w", err)
	}
	return &a, nil
}

// NewArtifact builds an artifact from an ABI document and hex creation code.
func NewArtifact(name, abiJSON, bytecode string) *ContractArtifact {
	return &ContractArtifact{ContractName: name, ABI: json.RawMessage(abiJSON), Bytecode: Bytecode{hex: bytecode}}
}

// parsed returns the ABI and creation code ready for deployment.
func (a *ContractArtifact) parsed() (abi.ABI, []byte, error) {
	raw := a.ABI
	if len(raw) == 0 {
		raw = json.RawMessage("[]")
	}
	parsed, err := abi.JSON(strings.NewReader(string(raw)))
	if err != nil {
		return abi.ABI{}, nil, fmt.Errorf("parse abi of %s: %w", a.ContractName, err)
	}
	code, err := a.Bytecode.Bytes()
	if err != nil {
		return abi.ABI{}, nil, fmt.Errorf("bytecode of %s: %w", a.ContractName, err)
	}
	return parsed, code, nil
}

// Artifacts maps deployable kinds to their compiled contracts.
type Artifacts map[interfaces.ComponentKind]*ContractArtifact

// DeployableKinds are the kinds the provisioner creates directly. Avatar, controller,
// token and reputation are created by forgeOrg.
var DeployableKinds = []interfaces.ComponentKind{
	interfaces.KindIdentity,
	interfaces.KindFeeFormula,
	interfaces.KindControllerCreator,
	interfaces.KindFounderSeeder,
	interfaces.KindOrganizationCreator,
	interfaces.KindVotingMachine,
	interfaces.KindUpgradeScheme,
	interfaces.KindSchemeRegistrar,
	interfaces.KindAdminWallet,
}

// LoadArtifacts reads <dir>/<ContractName>.json for every deployable kind.
func LoadArtifacts(dir string) (Artifacts, error) {
	out := make(Artifacts, len(DeployableKinds))
	for _, kind := range DeployableKinds {
		path := filepath.Join(dir, kind.String()+".json")
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read artifact %s: %w", path, err)
		}
		a, err := ParseArtifact(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if a.ContractName == "" {
			a.ContractName = kind.String()
		}
		out[kind] = a
	}
	return out, nil
}

func (a Artifacts) get(kind interfaces.ComponentKind) (*ContractArtifact, error) {
	artifact, ok := a[kind]
	if !ok || artifact == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingArtifact, kind)
	}
	return artifact, nil
}
