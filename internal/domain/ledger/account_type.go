package ledger

import (
	"sort"
	"strings"
)

// AccountType is one of the five root classifications of the chart of accounts
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Side is the debit or credit side of a posting
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// Opposite returns the other side
func (s Side) Opposite() Side {
	if s == SideDebit {
		return SideCredit
	}
	return SideDebit
}

type accountTypeInfo struct {
	normalSide Side
	statement  string
}

var accountTypes = map[AccountType]accountTypeInfo{
	AccountTypeAsset:     {normalSide: SideDebit, statement: "BALANCE_SHEET"},
	AccountTypeLiability: {normalSide: SideCredit, statement: "BALANCE_SHEET"},
	AccountTypeEquity:    {normalSide: SideCredit, statement: "BALANCE_SHEET"},
	AccountTypeRevenue:   {normalSide: SideCredit, statement: "INCOME_STATEMENT"},
	AccountTypeExpense:   {normalSide: SideDebit, statement: "INCOME_STATEMENT"},
}

func (t AccountType) IsValid() bool {
	_, ok := accountTypes[t]
	return ok
}

func (t AccountType) String() string {
	return string(t)
}

// NormalSide is the side that increases the balance: debit for assets and expenses,
// credit for liabilities, equity and revenue
func (t AccountType) NormalSide() Side {
	return accountTypes[t].normalSide
}

// Statement names the financial statement the type reports on
func (t AccountType) Statement() string {
	return accountTypes[t].statement
}

// ParseAccountType accepts any letter case
func ParseAccountType(s string) (AccountType, bool) {
	t := AccountType(strings.ToUpper(strings.TrimSpace(s)))
	return t, t.IsValid()
}

// AccountSubtype refines an AccountType
type AccountSubtype string

// SubtypeInfo describes a subtype in the lookup table
type SubtypeInfo struct {
	Type  AccountType
	Label string
	// Control subtypes summarise a subsidiary ledger and reject manual postings by default
	Control bool
}

var subtypes = map[AccountSubtype]SubtypeInfo{
	// assets
	"CASH":                     {AccountTypeAsset, "Cash", false},
	"PETTY_CASH":               {AccountTypeAsset, "Petty cash", false},
	"BANK_CHECKING":            {AccountTypeAsset, "Checking account", false},
	"BANK_SAVINGS":             {AccountTypeAsset, "Savings account", false},
	"MONEY_MARKET":             {AccountTypeAsset, "Money market", false},
	"CASH_EQUIVALENTS":         {AccountTypeAsset, "Cash equivalents", false},
	"UNDEPOSITED_FUNDS":        {AccountTypeAsset, "Undeposited funds", false},
	"ACCOUNTS_RECEIVABLE":      {AccountTypeAsset, "Accounts receivable", true},
	"ALLOWANCE_DOUBTFUL":       {AccountTypeAsset, "Allowance for doubtful accounts", false},
	"NOTES_RECEIVABLE":         {AccountTypeAsset, "Notes receivable", false},
	"INTEREST_RECEIVABLE":      {AccountTypeAsset, "Interest receivable", false},
	"EMPLOYEE_ADVANCES":        {AccountTypeAsset, "Employee advances", false},
	"INVENTORY":                {AccountTypeAsset, "Inventory", true},
	"RAW_MATERIALS":            {AccountTypeAsset, "Raw materials", false},
	"WORK_IN_PROGRESS":         {AccountTypeAsset, "Work in progress", false},
	"FINISHED_GOODS":           {AccountTypeAsset, "Finished goods", false},
	"PREPAID_EXPENSES":         {AccountTypeAsset, "Prepaid expenses", false},
	"PREPAID_INSURANCE":        {AccountTypeAsset, "Prepaid insurance", false},
	"DEPOSITS":                 {AccountTypeAsset, "Deposits", false},
	"SHORT_TERM_INVESTMENTS":   {AccountTypeAsset, "Short-term investments", false},
	"LONG_TERM_INVESTMENTS":    {AccountTypeAsset, "Long-term investments", false},
	"LAND":                     {AccountTypeAsset, "Land", false},
	"BUILDINGS":                {AccountTypeAsset, "Buildings", false},
	"MACHINERY":                {AccountTypeAsset, "Machinery", false},
	"VEHICLES":                 {AccountTypeAsset, "Vehicles", false},
	"FURNITURE":                {AccountTypeAsset, "Furniture and fixtures", false},
	"COMPUTER_EQUIPMENT":       {AccountTypeAsset, "Computer equipment", false},
	"LEASEHOLD_IMPROVEMENTS":   {AccountTypeAsset, "Leasehold improvements", false},
	"ACCUMULATED_DEPRECIATION": {AccountTypeAsset, "Accumulated depreciation", false},
	"INTANGIBLE_ASSETS":        {AccountTypeAsset, "Intangible assets", false},
	"GOODWILL":                 {AccountTypeAsset, "Goodwill", false},
	"ACCUMULATED_AMORTIZATION": {AccountTypeAsset, "Accumulated amortization", false},
	"DEFERRED_TAX_ASSET":       {AccountTypeAsset, "Deferred tax asset", false},
	"INPUT_TAX_RECOVERABLE":    {AccountTypeAsset, "Input tax recoverable", false},
	"OTHER_CURRENT_ASSET":      {AccountTypeAsset, "Other current asset", false},
	"OTHER_NONCURRENT_ASSET":   {AccountTypeAsset, "Other non-current asset", false},
	// liabilities
	"ACCOUNTS_PAYABLE":          {AccountTypeLiability, "Accounts payable", true},
	"ACCRUED_LIABILITIES":       {AccountTypeLiability, "Accrued liabilities", false},
	"ACCRUED_PAYROLL":           {AccountTypeLiability, "Accrued payroll", false},
	"PAYROLL_TAXES_PAYABLE":     {AccountTypeLiability, "Payroll taxes payable", false},
	"SALES_TAX_PAYABLE":         {AccountTypeLiability, "Sales tax payable", false},
	"INCOME_TAX_PAYABLE":        {AccountTypeLiability, "Income tax payable", false},
	"INTEREST_PAYABLE":          {AccountTypeLiability, "Interest payable", false},
	"CUSTOMER_DEPOSITS":         {AccountTypeLiability, "Customer deposits", false},
	"DEFERRED_REVENUE":          {AccountTypeLiability, "Deferred revenue", false},
	"CREDIT_CARD_PAYABLE":       {AccountTypeLiability, "Credit card payable", false},
	"LINE_OF_CREDIT":            {AccountTypeLiability, "Line of credit", false},
	"SHORT_TERM_LOANS":          {AccountTypeLiability, "Short-term loans", false},
	"CURRENT_PORTION_LONG_DEBT": {AccountTypeLiability, "Current portion of long-term debt", false},
	"NOTES_PAYABLE":             {AccountTypeLiability, "Notes payable", false},
	"LONG_TERM_DEBT":            {AccountTypeLiability, "Long-term debt", false},
	"BONDS_PAYABLE":             {AccountTypeLiability, "Bonds payable", false},
	"LEASE_LIABILITY":           {AccountTypeLiability, "Lease liability", false},
	"DEFERRED_TAX_LIABILITY":    {AccountTypeLiability, "Deferred tax liability", false},
	"OTHER_CURRENT_LIABILITY":   {AccountTypeLiability, "Other current liability", false},
	"OTHER_LONG_TERM_LIABILITY": {AccountTypeLiability, "Other long-term liability", false},
	// equity
	"COMMON_STOCK":           {AccountTypeEquity, "Common stock", false},
	"PREFERRED_STOCK":        {AccountTypeEquity, "Preferred stock", false},
	"ADDITIONAL_PAID_IN":     {AccountTypeEquity, "Additional paid-in capital", false},
	"OWNER_CONTRIBUTIONS":    {AccountTypeEquity, "Owner contributions", false},
	"OWNER_DRAWINGS":         {AccountTypeEquity, "Owner drawings", false},
	"RETAINED_EARNINGS":      {AccountTypeEquity, "Retained earnings", false},
	"TREASURY_STOCK":         {AccountTypeEquity, "Treasury stock", false},
	"DIVIDENDS":              {AccountTypeEquity, "Dividends", false},
	"OPENING_BALANCE_EQUITY": {AccountTypeEquity, "Opening balance equity", false},
	"ACCUMULATED_OCI":        {AccountTypeEquity, "Accumulated other comprehensive income", false},
	// revenue
	"SALES_REVENUE":        {AccountTypeRevenue, "Sales revenue", false},
	"SERVICE_REVENUE":      {AccountTypeRevenue, "Service revenue", false},
	"SUBSCRIPTION_REVENUE": {AccountTypeRevenue, "Subscription revenue", false},
	"SALES_RETURNS":        {AccountTypeRevenue, "Sales returns and allowances", false},
	"SALES_DISCOUNTS":      {AccountTypeRevenue, "Sales discounts", false},
	"INTEREST_INCOME":      {AccountTypeRevenue, "Interest income", false},
	"DIVIDEND_INCOME":      {AccountTypeRevenue, "Dividend income", false},
	"RENTAL_INCOME":        {AccountTypeRevenue, "Rental income", false},
	"GAIN_ON_SALE":         {AccountTypeRevenue, "Gain on sale of assets", false},
	"FX_GAIN":              {AccountTypeRevenue, "Foreign exchange gain", false},
	"PURCHASE_DISCOUNTS":   {AccountTypeRevenue, "Purchase discounts taken", false},
	"OTHER_INCOME":         {AccountTypeRevenue, "Other income", false},
	// expenses
	"COST_OF_GOODS_SOLD":     {AccountTypeExpense, "Cost of goods sold", false},
	"FREIGHT_IN":             {AccountTypeExpense, "Freight in", false},
	"SALARIES":               {AccountTypeExpense, "Salaries and wages", false},
	"PAYROLL_TAX_EXPENSE":    {AccountTypeExpense, "Payroll tax expense", false},
	"EMPLOYEE_BENEFITS":      {AccountTypeExpense, "Employee benefits", false},
	"RENT_EXPENSE":           {AccountTypeExpense, "Rent", false},
	"UTILITIES":              {AccountTypeExpense, "Utilities", false},
	"INSURANCE_EXPENSE":      {AccountTypeExpense, "Insurance", false},
	"OFFICE_SUPPLIES":        {AccountTypeExpense, "Office supplies", false},
	"SOFTWARE_SUBSCRIPTIONS": {AccountTypeExpense, "Software subscriptions", false},
	"PROFESSIONAL_FEES":      {AccountTypeExpense, "Professional fees", false},
	"ADVERTISING":            {AccountTypeExpense, "Advertising and marketing", false},
	"TRAVEL":                 {AccountTypeExpense, "Travel", false},
	"MEALS":                  {AccountTypeExpense, "Meals and entertainment", false},
	"REPAIRS_MAINTENANCE":    {AccountTypeExpense, "Repairs and maintenance", false},
	"DEPRECIATION_EXPENSE":   {AccountTypeExpense, "Depreciation", false},
	"AMORTIZATION_EXPENSE":   {AccountTypeExpense, "Amortization", false},
	"BAD_DEBT_EXPENSE":       {AccountTypeExpense, "Bad debt", false},
	"BANK_FEES":              {AccountTypeExpense, "Bank fees", false},
	"INTEREST_EXPENSE":       {AccountTypeExpense, "Interest expense", false},
	"INCOME_TAX_EXPENSE":     {AccountTypeExpense, "Income tax expense", false},
	"FX_LOSS":                {AccountTypeExpense, "Foreign exchange loss", false},
	"LOSS_ON_SALE":           {AccountTypeExpense, "Loss on sale of assets", false},
	"OTHER_EXPENSE":          {AccountTypeExpense, "Other expense", false},
}

// defaultSubtype is used when an account is created with only a root type
var defaultSubtype = map[AccountType]AccountSubtype{
	AccountTypeAsset:     "OTHER_CURRENT_ASSET",
	AccountTypeLiability: "OTHER_CURRENT_LIABILITY",
	AccountTypeEquity:    "RETAINED_EARNINGS",
	AccountTypeRevenue:   "OTHER_INCOME",
	AccountTypeExpense:   "OTHER_EXPENSE",
}

// LookupSubtype returns the table entry for s
func LookupSubtype(s AccountSubtype) (SubtypeInfo, bool) {
	info, ok := subtypes[AccountSubtype(strings.ToUpper(string(s)))]
	return info, ok
}

func (s AccountSubtype) IsValid() bool {
	_, ok := LookupSubtype(s)
	return ok
}

// Type returns the root type the subtype belongs to
func (s AccountSubtype) Type() AccountType {
	info, _ := LookupSubtype(s)
	return info.Type
}

// SubtypesOf lists the subtypes of t in sorted order
func SubtypesOf(t AccountType) []AccountSubtype {
	var out []AccountSubtype
	for s, info := range subtypes {
		if info.Type == t {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
