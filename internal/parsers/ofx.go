package parsers

import (
	"context"
	"io"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"golang-ledger-ingestion/internal/models"
	"golang-ledger-ingestion/pkg/errors"
	"golang-ledger-ingestion/pkg/logger"
)

var (
	reOFXSeverity = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	reOFXOpenTag  = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// preprocessOFX fixes formatting problems common in bank-issued OFX files
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = reOFXSeverity.ReplaceAllStringFunc(content, strings.ToUpper)
	return reOFXOpenTag.ReplaceAllString(content, "$1>")
}

// ParseOFX reads bank and credit card statements. Negative amounts are
// debits.
func (p *TableParser) ParseOFX(ctx context.Context, r io.Reader, name string) (*Document, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.FileError(errors.CodeFileCorrupted, name, err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(content))))
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, name, 0, "", "", err).
			WithSuggestion("Download the statement again as OFX or QFX")
	}

	doc := &Document{Name: name}
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			bankStmts++
			p.appendOFX(doc, stmt.BankTranList.Transactions, string(stmt.BankAcctFrom.AcctID))
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			ccStmts++
			p.appendOFX(doc, stmt.BankTranList.Transactions, string(stmt.CCAcctFrom.AcctID))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "ofx_parsing", err)
	}

	p.logger.WithFields(logger.Fields{
		"document":        name,
		"rows":            len(doc.Rows),
		"skipped":         len(doc.Skipped),
		"bank_statements": bankStmts,
		"cc_statements":   ccStmts,
	}).Info("Parsed OFX statement")

	return doc, nil
}

func (p *TableParser) appendOFX(doc *Document, txns []ofxgo.Transaction, account string) {
	for i, tx := range txns {
		amount, err := decimal.NewFromString(tx.TrnAmt.FloatString(2))
		if err != nil || amount.IsZero() {
			doc.Skipped = append(doc.Skipped, errors.RowAmountError(doc.Name, i+1, "TRNAMT", tx.TrnAmt.String()))
			continue
		}

		t := models.TypeCredit
		if amount.IsNegative() {
			t = models.TypeDebit
		}

		description := strings.TrimSpace(string(tx.Name))
		if tx.Memo != "" {
			description = strings.TrimSpace(description + " " + string(tx.Memo))
		}

		c := models.NewCandidate(t, amount.Abs(), ofxMethod(tx, description), 0)
		c.TransactionDate = tx.DtPosted.Time.In(p.location())
		c.Description = description
		c.ReferenceID = string(tx.FiTID)
		c.Account = lastDigits(account, 4)
		if tx.Payee != nil && tx.Payee.Name != "" {
			c.Counterparty = truncate(string(tx.Payee.Name), maxCounterpartyLen)
		}
		doc.Rows = append(doc.Rows, c)
	}
}

func ofxMethod(tx ofxgo.Transaction, description string) models.Method {
	switch tx.TrnType {
	case ofxgo.TrnTypeATM:
		return models.MethodATM
	case ofxgo.TrnTypeCheck:
		return models.MethodCheque
	case ofxgo.TrnTypePOS:
		return models.MethodPOS
	case ofxgo.TrnTypeCash:
		return models.MethodCash
	}
	return tableMethod(description)
}

func lastDigits(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
