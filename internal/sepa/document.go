package sepa

import "encoding/xml"

// Element structs for the pain.008 document tree. Field names follow the
// ISO 20022 long forms; the xml tags carry the schema's abbreviated tags.

type document struct {
	XMLName    xml.Name   `xml:"Document"`
	Namespace  string     `xml:"xmlns,attr"`
	Initiation initiation `xml:"CstmrDrctDbtInitn"`
}

type initiation struct {
	GroupHeader   groupHeader   `xml:"GrpHdr"`
	PaymentGroups []paymentInfo `xml:"PmtInf"`
}

type groupHeader struct {
	MessageID      string `xml:"MsgId"`
	CreatedAt      string `xml:"CreDtTm"`
	TxCount        int    `xml:"NbOfTxs"`
	ControlSum     string `xml:"CtrlSum"`
	InitiatingName string `xml:"InitgPty>Nm"`
}

type paymentInfo struct {
	ID             string        `xml:"PmtInfId"`
	Method         string        `xml:"PmtMtd"`
	BatchBooking   bool          `xml:"BtchBookg"`
	TxCount        int           `xml:"NbOfTxs"`
	ControlSum     string        `xml:"CtrlSum"`
	ServiceLevel   codeBlock     `xml:"PmtTpInf>SvcLvl"`
	Instrument     codeBlock     `xml:"PmtTpInf>LclInstrm"`
	SequenceType   string        `xml:"PmtTpInf>SeqTp"`
	CollectionDate string        `xml:"ReqdColltnDt"`
	Creditor       party         `xml:"Cdtr"`
	CreditorAcct   account       `xml:"CdtrAcct"`
	CreditorAgent  agent         `xml:"CdtrAgt"`
	ChargeBearer   string        `xml:"ChrgBr"`
	CreditorScheme schemeID      `xml:"CdtrSchmeId"`
	Transactions   []transaction `xml:"DrctDbtTxInf"`
}

type codeBlock struct {
	Code string `xml:"Cd"`
}

type party struct {
	Name string `xml:"Nm"`
}

type account struct {
	ID ibanID `xml:"Id"`
}

type ibanID struct {
	IBAN string `xml:"IBAN"`
}

type agent struct {
	Institution institution `xml:"FinInstnId"`
}

type institution struct {
	BIC string `xml:"BIC"`
}

type schemeID struct {
	ID schemePartyID `xml:"Id"`
}

type schemePartyID struct {
	Other schemeOther `xml:"PrvtId>Othr"`
}

type schemeOther struct {
	ID     string     `xml:"Id"`
	Scheme schemeName `xml:"SchmeNm"`
}

type schemeName struct {
	Proprietary string `xml:"Prtry"`
}

type transaction struct {
	PaymentID   paymentID   `xml:"PmtId"`
	Amount      amount      `xml:"InstdAmt"`
	MandateInfo mandateInfo `xml:"DrctDbtTx>MndtRltdInf"`
	DebtorAgent agent       `xml:"DbtrAgt"`
	Debtor      party       `xml:"Dbtr"`
	DebtorAcct  account     `xml:"DbtrAcct"`
	Remittance  remittance  `xml:"RmtInf"`
}

type paymentID struct {
	EndToEndID string `xml:"EndToEndId"`
}

type amount struct {
	Currency string `xml:"Ccy,attr"`
	Value    string `xml:",chardata"`
}

type mandateInfo struct {
	Reference     string `xml:"MndtId"`
	SignatureDate string `xml:"DtOfSgntr"`
}

type remittance struct {
	Unstructured string `xml:"Ustrd"`
}
