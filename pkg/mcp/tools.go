package mcp

import "github.com/mark3labs/mcp-go/mcp"

func getSelectionTool() mcp.Tool {
	return mcp.NewTool("get_selection",
		mcp.WithDescription("Returns the extracted style (fills, strokes, corner radius, size) of the first selected element, or null when nothing is selected."),
	)
}

func selectNodeTool() mcp.Tool {
	return mcp.NewTool("select_node",
		mcp.WithDescription("Replaces the document selection with the given node ids and returns the new extracted style."),
		mcp.WithArray("ids",
			mcp.Required(),
			mcp.Description("Node ids to select, e.g. [\"1:1\"]"),
			mcp.WithStringItems(),
		),
	)
}

func getFileInfoTool() mcp.Tool {
	return mcp.NewTool("get_file_info",
		mcp.WithDescription("Returns the name and key of the open document."),
	)
}

func getCollectionsTool() mcp.Tool {
	return mcp.NewTool("get_collections",
		mcp.WithDescription("Lists the document's token collections with their modes, plus the modes an apply uses by default."),
	)
}

func getComponentVariantsTool() mcp.Tool {
	return mcp.NewTool("get_component_variants",
		mcp.WithDescription("Imports a library component or component set by key and returns its variant properties. Falls back to the selected instance when the library is unavailable."),
		mcp.WithString("component_key",
			mcp.Required(),
			mcp.Description("Library key of the component or component set"),
		),
	)
}

func getSelectionVariantsTool() mcp.Tool {
	return mcp.NewTool("get_selection_variants",
		mcp.WithDescription("Returns the variant properties of the selected instance, component or component set."),
	)
}

func listCategoriesTool() mcp.Tool {
	return mcp.NewTool("list_categories",
		mcp.WithDescription("Lists the design-system component categories with their component counts."),
	)
}

func listComponentsTool() mcp.Tool {
	return mcp.NewTool("list_components",
		mcp.WithDescription("Lists design-system components, optionally filtered by category or by a name keyword."),
		mcp.WithString("category", mcp.Description("Category name, e.g. button")),
		mcp.WithString("keyword", mcp.Description("Case-insensitive substring of the component name")),
	)
}

func searchTokensTool() mcp.Tool {
	return mcp.NewTool("search_tokens",
		mcp.WithDescription("Searches the token catalog by name or description."),
		mcp.WithString("query", mcp.Description("Substring to match; empty lists every token")),
		mcp.WithString("value_type",
			mcp.Description("Restrict to one value type"),
			mcp.Enum("color", "number"),
		),
		mcp.WithString("collection", mcp.Description("Restrict to one collection, e.g. theme")),
	)
}

func suggestTokensTool() mcp.Tool {
	return mcp.NewTool("suggest_tokens",
		mcp.WithDescription("Suggests fill and radius tokens for the current selection and a component category."),
		mcp.WithString("category", mcp.Description("Component category; omitted uses the default color suggestions")),
	)
}

func addExtractionTool() mcp.Tool {
	return mcp.NewTool("add_extraction",
		mcp.WithDescription("Maps the current selection's style to tokens for a design-system component and adds it to the session. Omitted token choices take the suggested token; an empty string skips that property."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Component category")),
		mcp.WithString("component_key", mcp.Required(), mcp.Description("Component key within the category")),
		mcp.WithObject("variants", mcp.Description("Chosen variant values by property name")),
		mcp.WithString("fill_token", mcp.Description("Token for the first fill")),
		mcp.WithString("radius_token", mcp.Description("Token for the uniform corner radius")),
		mcp.WithString("stroke_token", mcp.Description("Token for the first stroke color")),
		mcp.WithString("stroke_weight_token", mcp.Description("Token for the stroke weight")),
	)
}

func removeExtractionTool() mcp.Tool {
	return mcp.NewTool("remove_extraction",
		mcp.WithDescription("Removes one extraction from the session."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Extraction id")),
	)
}

func listExtractionsTool() mcp.Tool {
	return mcp.NewTool("list_extractions",
		mcp.WithDescription("Lists the session's extractions in the order they were added."),
	)
}

func exportDocumentTool() mcp.Tool {
	return mcp.NewTool("export_document",
		mcp.WithDescription("Builds the export document from the session. Writes it to path when given, otherwise returns it."),
		mcp.WithString("path", mcp.Description("File to write the document to")),
		mcp.WithArray("modes", mcp.Description("Modes written to every mapping (default Light, Dark)"), mcp.WithStringItems()),
		mcp.WithBoolean("skip_derived", mcp.Description("Do not add derived alpha tokens")),
	)
}

func parseDocumentTool() mcp.Tool {
	return mcp.NewTool("parse_document",
		mcp.WithDescription("Resolves an export document against the document's tokens and returns the preview. Nothing is written."),
		mcp.WithString("document", mcp.Description("Export document JSON")),
		mcp.WithString("path", mcp.Description("File to read the export document from")),
	)
}

func applyChangesTool() mcp.Tool {
	return mcp.NewTool("apply_changes",
		mcp.WithDescription("Applies the ready items of the last preview to the document's tokens."),
		mcp.WithArray("modes", mcp.Description("Mode names to write; default is the theme collection's modes"), mcp.WithStringItems()),
		mcp.WithArray("variable_names", mcp.Description("Apply only these ready items"), mcp.WithStringItems()),
	)
}

func notifyTool() mcp.Tool {
	return mcp.NewTool("notify",
		mcp.WithDescription("Shows a message to the document user."),
		mcp.WithString("message", mcp.Required(), mcp.Description("Message text")),
	)
}
