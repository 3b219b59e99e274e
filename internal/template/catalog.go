// Package template は組み込み契約書テンプレートのカタログを提供する。
// テンプレートはビルトイン定数であり、DBには保存しない。
package template

import (
	"fmt"
	"strings"

	"github.com/hitoshi/pactman/internal/model"
)

// VariableType はテンプレート変数の入力形式を表す。
type VariableType string

const (
	// VariableTypeText は1行テキスト入力。
	VariableTypeText VariableType = "text"
	// VariableTypeTextarea は複数行テキスト入力。
	VariableTypeTextarea VariableType = "textarea"
	// VariableTypeDate は日付入力。
	VariableTypeDate VariableType = "date"
	// VariableTypeNumber は数値入力。
	VariableTypeNumber VariableType = "number"
	// VariableTypeEmail はメールアドレス入力。
	VariableTypeEmail VariableType = "email"
)

// Variable はテンプレート本文の置換変数の宣言。
type Variable struct {
	Name        string       `json:"name"`
	Label       string       `json:"label"`
	Type        VariableType `json:"type"`
	Placeholder string       `json:"placeholder,omitempty"`
	Required    bool         `json:"required"`
}

// Template は契約書テンプレートを表す。
// Contentは {{variable_name}} 形式のプレースホルダーを含むHTML。
type Template struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Variables   []Variable `json:"variables"`
	Content     string     `json:"content"`
}

// Render は変数値を本文に埋め込んだHTMLを返す。
// 値が空の変数は [変数名] のプレースホルダー表示になる。
// 宣言されていないキーは無視し、値が渡されなかったプレースホルダーは残る。
func (t *Template) Render(values map[string]string) string {
	content := t.Content
	for key, value := range values {
		if value == "" {
			value = fmt.Sprintf("[%s]", key)
		}
		content = strings.ReplaceAll(content, "{{"+key+"}}", value)
	}
	return content
}

// Catalog は組み込みテンプレートの読み取り専用カタログ。
type Catalog struct {
	templates []Template
}

// NewCatalog は組み込みテンプレートを登録したカタログを生成する。
func NewCatalog() *Catalog {
	return &Catalog{templates: builtinTemplates()}
}

// List は全テンプレートを定義順で返す。
func (c *Catalog) List() []Template {
	// 呼び出し側の変更からカタログを守るためコピーを返す
	out := make([]Template, len(c.templates))
	copy(out, c.templates)
	return out
}

// ListByCategory は指定カテゴリのテンプレートを返す。
func (c *Catalog) ListByCategory(category string) []Template {
	var out []Template
	for _, t := range c.templates {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// GetByID は指定IDのテンプレートを返す。見つからない場合はTemplateNotFound。
func (c *Catalog) GetByID(id string) (*Template, error) {
	for i := range c.templates {
		if c.templates[i].ID == id {
			t := c.templates[i]
			return &t, nil
		}
	}
	return nil, model.NewTemplateNotFoundError(id)
}

func builtinTemplates() []Template {
	return []Template{
		{
			ID:          "freelance-agreement",
			Name:        "Freelance Service Agreement",
			Description: "Standard agreement for freelance services between a freelancer and client.",
			Category:    "freelance",
			Variables: []Variable{
				{Name: "freelancer_name", Label: "Freelancer Name", Type: VariableTypeText, Required: true},
				{Name: "freelancer_address", Label: "Freelancer Address", Type: VariableTypeTextarea, Required: true},
				{Name: "client_name", Label: "Client Name", Type: VariableTypeText, Required: true},
				{Name: "client_address", Label: "Client Address", Type: VariableTypeTextarea, Required: true},
				{Name: "project_description", Label: "Project Description", Type: VariableTypeTextarea, Required: true},
				{Name: "deliverables", Label: "Deliverables", Type: VariableTypeTextarea, Required: true},
				{Name: "start_date", Label: "Start Date", Type: VariableTypeDate, Required: true},
				{Name: "end_date", Label: "End Date", Type: VariableTypeDate, Required: true},
				{Name: "total_fee", Label: "Total Fee ($)", Type: VariableTypeNumber, Required: true},
				{Name: "payment_schedule", Label: "Payment Schedule", Type: VariableTypeTextarea, Required: true},
			},
			Content: `<h1 style="text-align: center;">FREELANCE SERVICE AGREEMENT</h1>

<p><strong>Effective Date:</strong> {{start_date}}</p>

<h2>PARTIES</h2>

<p>This Freelance Service Agreement ("Agreement") is entered into between:</p>

<p><strong>Service Provider ("Freelancer"):</strong><br>
{{freelancer_name}}<br>
{{freelancer_address}}</p>

<p><strong>Client:</strong><br>
{{client_name}}<br>
{{client_address}}</p>

<h2>1. SCOPE OF WORK</h2>

<p>The Freelancer agrees to provide the following services:</p>

<p>{{project_description}}</p>

<h3>Deliverables:</h3>
<p>{{deliverables}}</p>

<h2>2. TIMELINE</h2>

<p><strong>Project Start Date:</strong> {{start_date}}<br>
<strong>Project End Date:</strong> {{end_date}}</p>

<h2>3. COMPENSATION</h2>

<p><strong>Total Fee:</strong> ${{total_fee}}</p>

<p><strong>Payment Schedule:</strong><br>
{{payment_schedule}}</p>

<p>Payment shall be made within 30 days of invoice receipt. Late payments will incur a 1.5% monthly interest charge.</p>

<h2>4. INTELLECTUAL PROPERTY</h2>

<p>Upon full payment, all deliverables and related intellectual property rights shall be transferred to the Client. The Freelancer retains the right to display completed work in their portfolio.</p>

<h2>5. CONFIDENTIALITY</h2>

<p>Both parties agree to keep confidential any proprietary information disclosed during the course of this engagement. This obligation survives the termination of this Agreement.</p>

<h2>6. REVISIONS</h2>

<p>This Agreement includes up to two (2) rounds of revisions. Additional revisions will be billed at the Freelancer's hourly rate.</p>

<h2>7. TERMINATION</h2>

<p>Either party may terminate this Agreement with 14 days written notice. Upon termination, the Client shall pay for all work completed to date.</p>

<h2>8. INDEPENDENT CONTRACTOR</h2>

<p>The Freelancer is an independent contractor and not an employee of the Client. The Freelancer is responsible for their own taxes and benefits.</p>

<h2>9. LIMITATION OF LIABILITY</h2>

<p>The Freelancer's liability shall not exceed the total fees paid under this Agreement.</p>

<h2>10. GOVERNING LAW</h2>

<p>This Agreement shall be governed by and construed in accordance with the laws of the state in which the Client is located.</p>

<h2>SIGNATURES</h2>

<div style="margin-top: 40px;">
<p><strong>Freelancer:</strong></p>
<p>Signature: _________________________ Date: _________</p>
<p>Print Name: {{freelancer_name}}</p>
</div>

<div style="margin-top: 40px;">
<p><strong>Client:</strong></p>
<p>Signature: _________________________ Date: _________</p>
<p>Print Name: {{client_name}}</p>
</div>`,
		},
		{
			ID:          "nda-mutual",
			Name:        "Mutual Non-Disclosure Agreement",
			Description: "Two-way NDA for sharing confidential information between parties.",
			Category:    "nda",
			Variables: []Variable{
				{Name: "party_a_name", Label: "First Party Name", Type: VariableTypeText, Required: true},
				{Name: "party_a_address", Label: "First Party Address", Type: VariableTypeTextarea, Required: true},
				{Name: "party_b_name", Label: "Second Party Name", Type: VariableTypeText, Required: true},
				{Name: "party_b_address", Label: "Second Party Address", Type: VariableTypeTextarea, Required: true},
				{Name: "purpose", Label: "Purpose of Disclosure", Type: VariableTypeTextarea, Required: true},
				{Name: "effective_date", Label: "Effective Date", Type: VariableTypeDate, Required: true},
				{Name: "term_years", Label: "Term (Years)", Type: VariableTypeNumber, Required: true},
			},
			Content: `<h1 style="text-align: center;">MUTUAL NON-DISCLOSURE AGREEMENT</h1>

<p><strong>Effective Date:</strong> {{effective_date}}</p>

<h2>PARTIES</h2>

<p>This Mutual Non-Disclosure Agreement ("Agreement") is entered into by and between:</p>

<p><strong>Party A:</strong><br>
{{party_a_name}}<br>
{{party_a_address}}</p>

<p><strong>Party B:</strong><br>
{{party_b_name}}<br>
{{party_b_address}}</p>

<p>(each a "Party" and collectively the "Parties")</p>

<h2>1. PURPOSE</h2>

<p>The Parties wish to explore a business opportunity of mutual interest regarding:</p>

<p>{{purpose}}</p>

<p>In connection with this opportunity, each Party may disclose Confidential Information to the other Party.</p>

<h2>2. DEFINITION OF CONFIDENTIAL INFORMATION</h2>

<p>"Confidential Information" means any and all non-public information, including but not limited to:</p>
<ul>
<li>Trade secrets and proprietary information</li>
<li>Business plans and strategies</li>
<li>Financial information and projections</li>
<li>Customer and supplier lists</li>
<li>Technical data and specifications</li>
<li>Software, algorithms, and source code</li>
<li>Marketing plans and research</li>
</ul>

<h2>3. OBLIGATIONS</h2>

<p>Each Party agrees to:</p>
<ul>
<li>Keep all Confidential Information strictly confidential</li>
<li>Use Confidential Information only for the stated Purpose</li>
<li>Not disclose Confidential Information to third parties without prior written consent</li>
<li>Protect Confidential Information with the same degree of care used to protect its own confidential information</li>
<li>Limit access to Confidential Information to employees with a need to know</li>
</ul>

<h2>4. EXCLUSIONS</h2>

<p>Confidential Information does not include information that:</p>
<ul>
<li>Is or becomes publicly available through no fault of the receiving Party</li>
<li>Was known to the receiving Party prior to disclosure</li>
<li>Is independently developed by the receiving Party</li>
<li>Is disclosed pursuant to a legal requirement</li>
</ul>

<h2>5. TERM</h2>

<p>This Agreement shall remain in effect for {{term_years}} years from the Effective Date. The confidentiality obligations shall survive termination for an additional five (5) years.</p>

<h2>6. RETURN OF MATERIALS</h2>

<p>Upon request or termination of this Agreement, each Party shall return or destroy all Confidential Information received from the other Party.</p>

<h2>7. NO LICENSE</h2>

<p>Nothing in this Agreement grants any rights to any Party's intellectual property, patents, trademarks, or copyrights.</p>

<h2>8. GOVERNING LAW</h2>

<p>This Agreement shall be governed by the laws of the state in which Party A is located.</p>

<h2>SIGNATURES</h2>

<div style="margin-top: 40px;">
<p><strong>Party A:</strong></p>
<p>Signature: _________________________ Date: _________</p>
<p>Print Name: {{party_a_name}}</p>
</div>

<div style="margin-top: 40px;">
<p><strong>Party B:</strong></p>
<p>Signature: _________________________ Date: _________</p>
<p>Print Name: {{party_b_name}}</p>
</div>`,
		},
		{
			ID:          "service-agreement",
			Name:        "Service Agreement",
			Description: "General agreement for providing professional services.",
			Category:    "service",
			Variables: []Variable{
				{Name: "provider_name", Label: "Service Provider Name", Type: VariableTypeText, Required: true},
				{Name: "provider_address", Label: "Provider Address", Type: VariableTypeTextarea, Required: true},
				{Name: "client_name", Label: "Client Name", Type: VariableTypeText, Required: true},
				{Name: "client_address", Label: "Client Address", Type: VariableTypeTextarea, Required: true},
				{Name: "services", Label: "Description of Services", Type: VariableTypeTextarea, Required: true},
				{Name: "start_date", Label: "Start Date", Type: VariableTypeDate, Required: true},
				{Name: "monthly_fee", Label: "Monthly Fee ($)", Type: VariableTypeNumber, Required: true},
				{Name: "notice_period", Label: "Termination Notice (Days)", Type: VariableTypeNumber, Required: true},
			},
			Content: `<h1 style="text-align: center;">SERVICE AGREEMENT</h1>

<p><strong>Effective Date:</strong> {{start_date}}</p>

<h2>PARTIES</h2>

<p><strong>Service Provider:</strong><br>
{{provider_name}}<br>
{{provider_address}}</p>

<p><strong>Client:</strong><br>
{{client_name}}<br>
{{client_address}}</p>

<h2>1. SERVICES</h2>

<p>The Service Provider agrees to provide the following services ("Services"):</p>

<p>{{services}}</p>

<h2>2. TERM</h2>

<p>This Agreement shall commence on {{start_date}} and continue on a month-to-month basis until terminated by either party.</p>

<h2>3. COMPENSATION</h2>

<p><strong>Monthly Fee:</strong> ${{monthly_fee}}</p>

<p>Payment is due on the first of each month. Invoices will be sent 7 days prior to the due date.</p>

<h2>4. SERVICE STANDARDS</h2>

<p>The Service Provider agrees to:</p>
<ul>
<li>Perform all Services in a professional and workmanlike manner</li>
<li>Respond to Client inquiries within 24 business hours</li>
<li>Provide regular progress updates as agreed upon</li>
<li>Maintain industry-standard security practices</li>
</ul>

<h2>5. CLIENT RESPONSIBILITIES</h2>

<p>The Client agrees to:</p>
<ul>
<li>Provide timely access to necessary information and resources</li>
<li>Make decisions and provide feedback in a timely manner</li>
<li>Pay all invoices according to the agreed payment terms</li>
</ul>

<h2>6. CONFIDENTIALITY</h2>

<p>Both parties agree to maintain the confidentiality of all non-public information shared during the course of this engagement.</p>

<h2>7. TERMINATION</h2>

<p>Either party may terminate this Agreement with {{notice_period}} days written notice. Upon termination, the Client shall pay for all Services rendered through the termination date.</p>

<h2>8. LIMITATION OF LIABILITY</h2>

<p>The Service Provider's liability shall not exceed the fees paid by the Client in the preceding three (3) months.</p>

<h2>9. ENTIRE AGREEMENT</h2>

<p>This Agreement constitutes the entire agreement between the parties and supersedes all prior negotiations and agreements.</p>

<h2>SIGNATURES</h2>

<div style="margin-top: 40px;">
<p><strong>Service Provider:</strong></p>
<p>Signature: _________________________ Date: _________</p>
<p>Print Name: {{provider_name}}</p>
</div>

<div style="margin-top: 40px;">
<p><strong>Client:</strong></p>
<p>Signature: _________________________ Date: _________</p>
<p>Print Name: {{client_name}}</p>
</div>`,
		},
		{
			ID:          "simple-contract",
			Name:        "Simple Contract",
			Description: "Basic two-party agreement for simple transactions.",
			Category:    "general",
			Variables: []Variable{
				{Name: "party_a", Label: "First Party Name", Type: VariableTypeText, Required: true},
				{Name: "party_b", Label: "Second Party Name", Type: VariableTypeText, Required: true},
				{Name: "agreement_details", Label: "Agreement Details", Type: VariableTypeTextarea, Required: true},
				{Name: "effective_date", Label: "Effective Date", Type: VariableTypeDate, Required: true},
			},
			Content: `<h1 style="text-align: center;">CONTRACT AGREEMENT</h1>

<p><strong>Effective Date:</strong> {{effective_date}}</p>

<h2>PARTIES</h2>

<p>This Agreement is entered into between <strong>{{party_a}}</strong> ("First Party") and <strong>{{party_b}}</strong> ("Second Party").</p>

<h2>AGREEMENT</h2>

<p>{{agreement_details}}</p>

<h2>TERMS</h2>

<p>Both parties agree to fulfill their respective obligations as outlined above in good faith and in a timely manner.</p>

<h2>GENERAL PROVISIONS</h2>

<p><strong>Entire Agreement:</strong> This document constitutes the entire agreement between the parties.</p>

<p><strong>Amendments:</strong> Any changes to this Agreement must be in writing and signed by both parties.</p>

<p><strong>Severability:</strong> If any provision is found invalid, the remaining provisions shall remain in effect.</p>

<h2>SIGNATURES</h2>

<div style="margin-top: 40px;">
<p><strong>First Party:</strong></p>
<p>Signature: _________________________ Date: _________</p>
<p>Print Name: {{party_a}}</p>
</div>

<div style="margin-top: 40px;">
<p><strong>Second Party:</strong></p>
<p>Signature: _________________________ Date: _________</p>
<p>Print Name: {{party_b}}</p>
</div>`,
		},
	}
}
