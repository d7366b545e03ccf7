package ethledger

import "github.com/lmittmann/w3"

// Identity
var (
	funcSetAuthenticationPeriod = w3.MustNewFunc("setAuthenticationPeriod(uint256)", "")
	funcSetAvatar               = w3.MustNewFunc("setAvatar(address)", "")
	funcAddIdentityAdmin        = w3.MustNewFunc("addIdentityAdmin(address)", "")
	funcAddPauser               = w3.MustNewFunc("addPauser(address)", "")
	funcIsWhitelisted           = w3.MustNewFunc("isWhitelisted(address)", "bool")
	funcAddWhitelisted          = w3.MustNewFunc("addWhitelisted(address)", "")
	funcAddContract             = w3.MustNewFunc("addContract(address)", "")
	funcTransferOwnership       = w3.MustNewFunc("transferOwnership(address)", "")
)

// DaoCreatorGoodDollar
var (
	funcForgeOrg = w3.MustNewFunc(
		"forgeOrg(string,string,uint256,address,address,address[],uint256,uint256[])", "",
	)
	funcSetSchemes = w3.MustNewFunc(
		"setSchemes(address,address[],bytes32[],bytes4[],string)", "",
	)
	funcCreatorAvatar = w3.MustNewFunc("avatar()", "address")
)

// Avatar
var (
	funcOwner            = w3.MustNewFunc("owner()", "address")
	funcNativeToken      = w3.MustNewFunc("nativeToken()", "address")
	funcNativeReputation = w3.MustNewFunc("nativeReputation()", "address")
)

// GoodDollar
var (
	funcMint           = w3.MustNewFunc("mint(address,uint256)", "bool")
	funcRenounceMinter = w3.MustNewFunc("renounceMinter()", "")
	funcBalanceOf      = w3.MustNewFunc("balanceOf(address)", "uint256")
)

// AbsoluteVote, UpgradeScheme and SchemeRegistrar
var (
	funcVoteParametersHash      = w3.MustNewFunc("getParametersHash(uint256,address)", "bytes32")
	funcSetVoteParameters       = w3.MustNewFunc("setParameters(uint256,address)", "bytes32")
	funcUpgradeParametersHash   = w3.MustNewFunc("getParametersHash(bytes32,address)", "bytes32")
	funcSetUpgradeParameters    = w3.MustNewFunc("setParameters(bytes32,address)", "bytes32")
	funcRegistrarParametersHash = w3.MustNewFunc("getParametersHash(bytes32,bytes32,address)", "bytes32")
	funcSetRegistrarParameters  = w3.MustNewFunc("setParameters(bytes32,bytes32,address)", "bytes32")
)
