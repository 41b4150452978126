package blockchain

const loanRegistryABI = `[
{"inputs":[{"internalType":"uint256","name":"_nftId","type":"uint256"},{"internalType":"address","name":"_nft","type":"address"},{"internalType":"uint256","name":"_amount","type":"uint256"},{"internalType":"uint256","name":"_loanDuration","type":"uint256"},{"internalType":"uint256","name":"_interest","type":"uint256"}],"name":"askForLoan","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"internalType":"uint256","name":"_loanId","type":"uint256"}],"name":"ceaseNft","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"internalType":"uint256","name":"_loanId","type":"uint256"}],"name":"closeBorrowRequest","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"internalType":"uint256","name":"_loanId","type":"uint256"}],"name":"lendMoney","outputs":[],"stateMutability":"payable","type":"function"},
{"inputs":[{"internalType":"uint256","name":"_loanId","type":"uint256"}],"name":"repayLoan","outputs":[],"stateMutability":"payable","type":"function"},
{"inputs":[{"internalType":"uint256","name":"_loanId","type":"uint256"}],"name":"getDetails","outputs":[{"internalType":"uint256","name":"loanAmount","type":"uint256"},{"internalType":"uint256","name":"interest","type":"uint256"},{"internalType":"uint256","name":"amountToBeRepayed","type":"uint256"},{"internalType":"uint256","name":"nftId","type":"uint256"},{"internalType":"uint256","name":"loanDuration","type":"uint256"},{"internalType":"uint256","name":"loanDurationEndTimestamp","type":"uint256"},{"internalType":"uint256","name":"loanIndex","type":"uint256"},{"internalType":"address","name":"nftAddress","type":"address"},{"internalType":"address payable","name":"borrowerAddress","type":"address"},{"internalType":"address payable","name":"lenderAddress","type":"address"},{"internalType":"enum NftLoan.Status","name":"status","type":"uint8"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"getId","outputs":[{"internalType":"uint256","name":"id","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

const erc721ApproveABI = `[
{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"name":"approve","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

const piggyBankABI = `[
{"inputs":[],"name":"breakPiggyBank","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[],"name":"deposit","outputs":[],"stateMutability":"payable","type":"function"},
{"inputs":[],"name":"getBalance","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"owner","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`
