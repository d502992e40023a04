package docgen

import (
	"strings"
	"testing"

	"gcloud-docgen/internal/docx"
	"gcloud-docgen/internal/docx/docxtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openDoc(t *testing.T, b *docxtest.Builder) *docx.Document {
	t.Helper()
	doc, err := docx.Open(b.Build())
	require.NoError(t, err)
	return doc
}

func docOutline(t *testing.T, doc *docx.Document) []docxtest.Block {
	t.Helper()
	blocks, err := docxtest.OutlineOf(doc)
	require.NoError(t, err)
	return blocks
}

func reopen(t *testing.T, doc *docx.Document) *docx.Document {
	t.Helper()
	data, err := doc.Bytes()
	require.NoError(t, err)
	out, err := docx.Open(data)
	require.NoError(t, err)
	return out
}

func TestSetTitle(t *testing.T) {
	opts := DefaultOptions()

	t.Run("first heading 1", func(t *testing.T) {
		doc := openDoc(t, docxtest.New().Heading(1, "ENTER SERVICE NAME HERE").Heading(1, "Second"))
		placed, err := SetTitle(doc, "Managed Cloud", opts)
		require.NoError(t, err)
		assert.Equal(t, TitleInHeading, placed)

		blocks := docOutline(t, doc)
		assert.Equal(t, "Managed Cloud", blocks[0].Text)
		assert.Equal(t, "Second", blocks[1].Text)
	})

	t.Run("skips reserved headings", func(t *testing.T) {
		doc := openDoc(t, docxtest.New().Heading(1, "Contents").Heading(1, "Key Service Features").Heading(1, "Add Title"))
		placed, err := SetTitle(doc, "Managed Cloud", opts)
		require.NoError(t, err)
		assert.Equal(t, TitleInHeading, placed)
		assert.Equal(t, []string{"Contents", "Key Service Features", "Managed Cloud"}, docxtest.Texts(docOutline(t, doc)))
	})

	t.Run("hyperlinked heading is replaced whole", func(t *testing.T) {
		doc := openDoc(t, docxtest.New().HyperlinkHeading("Old name"))
		_, err := SetTitle(doc, "Managed Cloud", opts)
		require.NoError(t, err)
		assert.Equal(t, "Managed Cloud", docOutline(t, doc)[0].Text)
	})

	t.Run("falls back to placeholder text", func(t *testing.T) {
		doc := openDoc(t, docxtest.New().Para("Welcome to enter service name here").Heading(2, "Contents"))
		placed, err := SetTitle(doc, "Managed Cloud", opts)
		require.NoError(t, err)
		assert.Equal(t, TitleInPlaceholder, placed)
		assert.Equal(t, "Welcome to Managed Cloud", docOutline(t, doc)[0].Text)
	})

	t.Run("custom heading prefix", func(t *testing.T) {
		custom := DefaultOptions()
		custom.HeadingPrefix = "Titre"
		doc := openDoc(t, docxtest.New().
			Style("Titre1", "Titre 1").
			Heading(1, "Heading title").
			Styled("Titre1", "ENTER SERVICE NAME HERE"))
		placed, err := SetTitle(doc, "Managed Cloud", custom)
		require.NoError(t, err)
		assert.Equal(t, TitleInHeading, placed)
		assert.Equal(t, []string{"Heading title", "Managed Cloud"}, docxtest.Texts(docOutline(t, doc)))
	})

	t.Run("title containing a placeholder", func(t *testing.T) {
		doc := openDoc(t, docxtest.New().Para("Cover for {{SERVICE_NAME}}"))
		_, err := SetTitle(doc, "Add Title Service", opts)
		require.NoError(t, err)
		_, err = SetTitle(doc, "Add Title Service", opts)
		require.NoError(t, err)
		assert.Equal(t, "Cover for Add Title Service", docOutline(t, doc)[0].Text)
	})

	t.Run("nothing to replace", func(t *testing.T) {
		doc := openDoc(t, docxtest.New().Para("Plain"))
		placed, err := SetTitle(doc, "Managed Cloud", opts)
		require.NoError(t, err)
		assert.Equal(t, TitleNotPlaced, placed)
	})

	t.Run("idempotent", func(t *testing.T) {
		doc := openDoc(t, docxtest.New().Heading(1, "ENTER SERVICE NAME HERE").Para("body"))
		_, err := SetTitle(doc, "Managed Cloud", opts)
		require.NoError(t, err)
		once, err := doc.Bytes()
		require.NoError(t, err)

		_, err = SetTitle(doc, "Managed Cloud", opts)
		require.NoError(t, err)
		twice, err := doc.Bytes()
		require.NoError(t, err)

		a, err := docxtest.Outline(once)
		require.NoError(t, err)
		b, err := docxtest.Outline(twice)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
}

func TestDetachAboutBlock(t *testing.T) {
	opts := DefaultOptions()

	t.Run("sentinel inside a text box", func(t *testing.T) {
		doc := openDoc(t, docxtest.New().
			Heading(2, "Service Definition").
			Textbox(AboutSentinel).
			Heading(2, "About PA").
			Para("We are consultants"))

		detached, err := DetachAboutBlock(doc, opts)
		require.NoError(t, err)
		require.Len(t, detached, 3)
		for _, t2 := range docx.TextNodes(detached[0]) {
			assert.NotContains(t, t2.Text(), AboutSentinel)
		}
		assert.Equal(t, []string{"Service Definition"}, docxtest.Texts(docOutline(t, doc)))
	})

	t.Run("sentinel split over runs", func(t *testing.T) {
		doc := openDoc(t, docxtest.New().
			Para("body").
			SplitPara("{{ABOUT_PA", "_START}}").
			Para("About text"))

		detached, err := DetachAboutBlock(doc, opts)
		require.NoError(t, err)
		require.Len(t, detached, 2)
		assert.Equal(t, "", docx.ParagraphText(detached[0]))
	})

	t.Run("about heading fallback", func(t *testing.T) {
		doc := openDoc(t, docxtest.New().
			Para("body").
			Heading(1, "About Us and our partners").
			Para("text"))

		detached, err := DetachAboutBlock(doc, opts)
		require.NoError(t, err)
		require.Len(t, detached, 2)
		assert.Equal(t, "About Us and our partners", docx.ParagraphText(detached[0]))
	})

	t.Run("skipped title heading is not the about block", func(t *testing.T) {
		doc := openDoc(t, docxtest.New().
			Heading(1, "About Us Migration").
			Para("body").
			Heading(2, "About Us").
			Para("text"))
		body, _ := doc.Body()

		detached, err := DetachAboutBlock(doc, opts, docx.Blocks(body)[0])
		require.NoError(t, err)
		require.Len(t, detached, 2)
		assert.Equal(t, "About Us", docx.ParagraphText(detached[0]))
		assert.Equal(t, []string{"About Us Migration", "body"}, docxtest.Texts(docOutline(t, doc)))
	})

	t.Run("plain paragraph mentioning about is ignored", func(t *testing.T) {
		doc := openDoc(t, docxtest.New().Para("About PA consulting").Para("text"))
		detached, err := DetachAboutBlock(doc, opts)
		require.NoError(t, err)
		assert.Nil(t, detached)
		assert.Len(t, docOutline(t, doc), 2)
	})
}

func TestReattachAboutBlock(t *testing.T) {
	doc := openDoc(t, docxtest.New().Para("body").Heading(2, "About PA").Para("text"))
	detached, err := DetachAboutBlock(doc, DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, ReattachAboutBlock(doc, detached))
	blocks := docOutline(t, reopen(t, doc))
	require.Len(t, blocks, 6)
	assert.Equal(t, "body", blocks[0].Text)
	assert.False(t, blocks[1].PageBreak)
	assert.False(t, blocks[2].PageBreak)
	assert.True(t, blocks[3].PageBreak)
	assert.Equal(t, "About PA", blocks[4].Text)

	require.NoError(t, ReattachAboutBlock(doc, nil))
	assert.Len(t, docOutline(t, doc), 6)
}

func TestExciseSections(t *testing.T) {
	template := func() *docxtest.Builder {
		return docxtest.New().
			Heading(2, "Short Service Description").
			Para("old description").
			Heading(3, "Detail").
			Para("old detail").
			Heading(2, "Key Service Features").
			Table("cell").
			TOCSdt("nested").
			Para("old feature").
			Heading(2, "Key Service Benefits")
	}

	t.Run("stops at any heading", func(t *testing.T) {
		doc := openDoc(t, template())
		retained, err := ExciseSections(doc, DefaultOptions())
		require.NoError(t, err)

		assert.Equal(t, []string{
			"Short Service Description", "Detail", "old detail",
			"Key Service Features", "Key Service Benefits",
		}, docxtest.Texts(docOutline(t, doc)))
		assert.Contains(t, retained, SectionShortDescription)
		assert.Contains(t, retained, SectionFeatures)
		assert.Contains(t, retained, SectionBenefits)
		assert.NotContains(t, retained, SectionDefinition)
	})

	t.Run("clears nested subheadings", func(t *testing.T) {
		opts := DefaultOptions()
		opts.ExciseSubheadings = true
		doc := openDoc(t, template())
		_, err := ExciseSections(doc, opts)
		require.NoError(t, err)

		assert.Equal(t, []string{
			"Short Service Description", "Key Service Features", "Key Service Benefits",
		}, docxtest.Texts(docOutline(t, doc)))
	})

	t.Run("runs to the end of the body", func(t *testing.T) {
		doc := openDoc(t, docxtest.New().Heading(2, "Service Definition").Para("a").Table("b"))
		_, err := ExciseSections(doc, DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, []string{"Service Definition"}, docxtest.Texts(docOutline(t, doc)))
	})

	t.Run("skipped title heading is not a match", func(t *testing.T) {
		doc := openDoc(t, docxtest.New().
			Heading(1, "Cloud Service Definition Support").
			Para("cover").
			Heading(2, "Service Definition").
			Para("old"))
		body, _ := doc.Body()
		title := docx.Blocks(body)[0]

		retained, err := ExciseSections(doc, DefaultOptions(), title)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"Cloud Service Definition Support", "cover", "Service Definition",
		}, docxtest.Texts(docOutline(t, doc)))
		assert.NotSame(t, title, retained[SectionDefinition])
	})

	t.Run("heading match is case sensitive", func(t *testing.T) {
		doc := openDoc(t, docxtest.New().Heading(2, "key service features").Para("kept"))
		retained, err := ExciseSections(doc, DefaultOptions())
		require.NoError(t, err)
		assert.Empty(t, retained)
		assert.Len(t, docOutline(t, doc), 2)
	})
}

func TestRebuildTOC(t *testing.T) {
	opts := DefaultOptions()

	t.Run("creates settings part", func(t *testing.T) {
		doc := openDoc(t, docxtest.New().Heading(2, "Contents").TOC("a").Heading(2, "Body").WithoutSettings())
		warning, err := RebuildTOC(doc, opts)
		require.NoError(t, err)
		assert.Nil(t, warning)

		out := reopen(t, doc)
		settings, ok := out.Raw("word/settings.xml")
		require.True(t, ok)
		assert.Contains(t, string(settings), `w:updateFields w:val="true"`)
		rels, _ := out.Raw("word/_rels/document.xml.rels")
		assert.Contains(t, string(rels), `Target="settings.xml"`)
	})

	t.Run("existing updateFields is switched on", func(t *testing.T) {
		doc := openDoc(t, docxtest.New().Heading(2, "Contents").Settings(
			`<w:settings xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:updateFields w:val="false"/></w:settings>`))
		_, err := RebuildTOC(doc, opts)
		require.NoError(t, err)
		settings, _ := reopen(t, doc).Raw("word/settings.xml")
		assert.Equal(t, 1, strings.Count(string(settings), "updateFields"))
		assert.Contains(t, string(settings), `w:updateFields w:val="true"`)
	})

	t.Run("no extra break before a page-breaking heading", func(t *testing.T) {
		doc := openDoc(t, docxtest.New().
			Heading(2, "Contents").
			TOC("a").
			Raw(`<w:p><w:pPr><w:pStyle w:val="Heading2"/><w:pageBreakBefore/></w:pPr><w:r><w:t>Body</w:t></w:r></w:p>`))
		_, err := RebuildTOC(doc, opts)
		require.NoError(t, err)

		blocks := docOutline(t, doc)
		require.Len(t, blocks, 3)
		assert.Equal(t, tocHint, blocks[1].Text)
		body, _ := doc.Body()
		assert.Empty(t, docx.Descendants(docx.Blocks(body)[1], "w", "br"))
	})

	t.Run("contents title inside the toc control survives", func(t *testing.T) {
		doc := openDoc(t, docxtest.New().
			Raw(`<w:sdt><w:sdtPr><w:docPartObj><w:docPartGallery w:val="Table of Contents"/></w:docPartObj></w:sdtPr><w:sdtContent>`+
				`<w:p><w:pPr><w:pStyle w:val="TOCHeading"/></w:pPr><w:r><w:t>Table of Contents</w:t></w:r></w:p>`+
				`<w:p><w:r><w:fldChar w:fldCharType="begin"/></w:r><w:r><w:instrText> TOC \o "1-3" </w:instrText></w:r><w:r><w:fldChar w:fldCharType="separate"/></w:r><w:r><w:t>old</w:t></w:r><w:r><w:fldChar w:fldCharType="end"/></w:r></w:p>`+
				`</w:sdtContent></w:sdt>`).
			Heading(2, "Body"))
		_, err := RebuildTOC(doc, opts)
		require.NoError(t, err)

		blocks := docOutline(t, doc)
		require.Len(t, blocks, 3)
		assert.Equal(t, "Table of Contents", blocks[0].Text)
		assert.Equal(t, tocHint, strings.TrimSpace(blocks[1].Text))
		assert.True(t, blocks[1].PageBreak)
		assert.Equal(t, "Body", blocks[2].Text)
	})

	t.Run("simple toc field is removed", func(t *testing.T) {
		doc := openDoc(t, docxtest.New().
			Heading(2, "Contents").
			Raw(`<w:p><w:fldSimple w:instr=" TOC \o &quot;1-3&quot; "><w:r><w:t>old</w:t></w:r></w:fldSimple></w:p>`).
			Heading(2, "Body"))
		_, err := RebuildTOC(doc, opts)
		require.NoError(t, err)
		blocks := docOutline(t, doc)
		require.Len(t, blocks, 3)
		assert.Equal(t, "Contents", blocks[0].Text)
		assert.Equal(t, tocHint, strings.TrimSpace(blocks[1].Text))
		assert.True(t, blocks[1].PageBreak)
		assert.Equal(t, "Body", blocks[2].Text)
		main, _ := reopen(t, doc).Raw("word/document.xml")
		assert.NotContains(t, string(main), "fldSimple")
	})

	t.Run("missing contents heading", func(t *testing.T) {
		doc := openDoc(t, docxtest.New().Heading(2, "Body").TOC("a"))
		warning, err := RebuildTOC(doc, opts)
		require.NoError(t, err)
		require.NotNil(t, warning)
		assert.Equal(t, KindContentsNotFound, warning.Kind)
		assert.Equal(t, []string{"Body"}, docxtest.Texts(docOutline(t, doc)))
	})
}

func TestSweepPlaceholders(t *testing.T) {
	doc := openDoc(t, docxtest.New().
		SplitPara("Title: {{SERVICE", "_NAME}} and ", "add ", "title").
		ShapeText("ENTER SERVICE NAME HERE").
		Para("keep me").
		Header("{{service_name}}"))

	n, err := SweepPlaceholders(doc, "Cloud & Co", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	blocks := docOutline(t, reopen(t, doc))
	assert.Equal(t, "Title: Cloud & Co and Cloud & Co", blocks[0].Text)
	assert.Equal(t, "keep me", blocks[2].Text)

	header, _ := reopen(t, doc).Raw("word/header1.xml")
	assert.Contains(t, string(header), "Cloud &amp; Co")
}

func TestSweepSerialized(t *testing.T) {
	data := docxtest.New().Para("x {{SERVICE_NAME}} y " + AboutSentinel).Build()
	doc, err := docx.Open(data)
	require.NoError(t, err)

	out, err := SweepSerialized(data, doc.WordXMLParts(), "A<B", DefaultOptions())
	require.NoError(t, err)

	blocks, err := docxtest.Outline(out)
	require.NoError(t, err)
	assert.Equal(t, "x A<B y ", blocks[0].Text)
}

func TestSweepPlaceholdersLeavesTitleAlone(t *testing.T) {
	doc := openDoc(t, docxtest.New().
		Heading(1, "Add Title Service").
		Para("Cover text for {{SERVICE_NAME}}").
		Header("{{SERVICE_NAME}} | Service Description"))

	n, err := SweepPlaceholders(doc, "Add Title Service", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = SweepPlaceholders(doc, "Add Title Service", DefaultOptions())
	require.NoError(t, err)
	assert.Zero(t, n)

	out := reopen(t, doc)
	assert.Equal(t, []string{"Add Title Service", "Cover text for Add Title Service"}, docxtest.Texts(docOutline(t, out)))
	header, _ := out.Raw("word/header1.xml")
	assert.Contains(t, string(header), "Add Title Service | Service Description")
}

func TestSweepSerializedLeavesTitleAlone(t *testing.T) {
	data := docxtest.New().Para("Add Title Service & co, add title").Build()
	doc, err := docx.Open(data)
	require.NoError(t, err)

	out, err := SweepSerialized(data, doc.WordXMLParts(), "Add Title Service & co", DefaultOptions())
	require.NoError(t, err)

	blocks, err := docxtest.Outline(out)
	require.NoError(t, err)
	assert.Equal(t, "Add Title Service & co, Add Title Service & co", blocks[0].Text)
}

func TestReplaceAcross(t *testing.T) {
	doc := openDoc(t, docxtest.New().SplitPara("ab", "cX", "Yd", "XY"))
	body, _ := doc.Body()
	nodes := docx.TextNodes(docx.Blocks(body)[0])

	n := replaceAcross(nodes, foldPattern("cxyd", "xy"), "_", "")
	assert.Equal(t, 2, n)
	assert.Equal(t, "ab__", docx.ParagraphText(docx.Blocks(body)[0]))

	doc = openDoc(t, docxtest.New().SplitPara("Add Title ", "Service, ", "add title"))
	body, _ = doc.Body()
	n = replaceAcross(docx.TextNodes(docx.Blocks(body)[0]), foldPattern("Add Title"), "Add Title Service", "Add Title Service")
	assert.Equal(t, 1, n)
	assert.Equal(t, "Add Title Service, Add Title Service", docx.ParagraphText(docx.Blocks(body)[0]))
	assert.Nil(t, foldPattern("", ""))
}

func TestHeadingLevels(t *testing.T) {
	doc := openDoc(t, docxtest.New().Heading(1, "a").Heading(3, "b").Para("c").Styled("Title", "d"))
	body, _ := doc.Body()
	blocks := docx.Blocks(body)
	h := headings{doc: doc, prefix: "Heading"}

	assert.Equal(t, 1, h.level(blocks[0]))
	assert.Equal(t, 3, h.level(blocks[1]))
	assert.False(t, h.is(blocks[2]))
	assert.False(t, h.is(blocks[3]))

	stop := h.boundary(blocks[0], true)
	assert.False(t, stop(blocks[1]))
	assert.True(t, h.boundary(blocks[1], true)(blocks[0]))
}
