package vocab

import "statement_stitch/pkg/models"

// DefaultVocabulary returns the built-in US GAAP style phrase tables.
func DefaultVocabulary() Vocabulary {
	v := Vocabulary{Statements: map[models.StatementType]*Entry{
		models.IncomeStatement: {
			Keywords: []string{
				"revenue",
				"net sales",
				"cost of sales",
				"cost of revenue",
				"cost of goods sold",
				"gross profit",
				"gross margin",
				"operating income",
				"operating expenses",
				"income from operations",
				"research and development",
				"selling, general and administrative",
				"interest expense",
				"income before income taxes",
				"provision for income taxes",
				"income tax expense",
				"net income",
				"net loss",
				"per share",
				"weighted average",
			},
			TitleExact: []string{
				"income statement",
				"statement of operations",
				"statements of operations",
				"statement of income",
				"statements of income",
				"statement of earnings",
				"statements of earnings",
				"profit and loss",
			},
			TitlePartial: []string{"income", "operations", "earnings", "profit", "p&l"},
			HeaderPhrases: []string{
				"income statement",
				"statement of operations",
				"statements of operations",
				"statement of income",
				"statements of income",
				"statement of earnings",
				"statements of earnings",
			},
			MinScore: 6,
		},
		models.BalanceSheet: {
			Keywords: []string{
				"total assets",
				"current assets",
				"cash and cash equivalents",
				"accounts receivable",
				"inventories",
				"property, plant and equipment",
				"goodwill",
				"intangible assets",
				"total liabilities",
				"current liabilities",
				"accounts payable",
				"accrued liabilities",
				"long-term debt",
				"stockholders' equity",
				"shareholders' equity",
				"retained earnings",
				"additional paid-in capital",
				"treasury stock",
			},
			TitleExact: []string{
				"balance sheet",
				"statement of financial position",
				"statements of financial position",
				"statement of financial condition",
			},
			TitlePartial: []string{"balance", "financial position", "financial condition", "assets"},
			HeaderPhrases: []string{
				"balance sheet",
				"statement of financial position",
				"statements of financial position",
				"statement of financial condition",
			},
			MinScore: 5,
		},
		models.CashFlow: {
			Keywords: []string{
				"operating activities",
				"investing activities",
				"financing activities",
				"depreciation and amortization",
				"stock-based compensation",
				"share-based compensation",
				"capital expenditures",
				"purchases of property",
				"net cash provided by",
				"net cash used in",
				"beginning of period",
				"end of period",
				"beginning of year",
				"end of year",
				"dividends paid",
				"repurchases of common stock",
				"changes in operating assets",
			},
			TitleExact: []string{
				"statement of cash flows",
				"statements of cash flows",
				"statement of cash flow",
				"cash flow statement",
			},
			TitlePartial: []string{"cash flow", "cash"},
			HeaderPhrases: []string{
				"statement of cash flows",
				"statements of cash flows",
				"statement of cash flow",
				"cash flow statement",
			},
			MinScore: 6,
		},
	}}
	v.normalize()
	return v
}
