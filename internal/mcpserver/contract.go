package mcpserver

// MappingFormatContract describes the portable preset document and the
// mapping rule shapes that LLM consumers should follow when proposing
// preset configurations.
const MappingFormatContract = `# Cardnav Preset Mapping Contract

A preset bundles the three card-view configuration sections and a set of
mapping rules that decide when the preset activates.

## Document shape

` + "```" + `json
{
  "presets": [
    {
      "id": "4f8a1c32-…",
      "name": "Projects",
      "description": "Wide layout for project notes",
      "configBundle": {
        "cardSetConfig":    { "source": "folder" },
        "layoutConfig":     { "columns": 3 },
        "cardRenderConfig": { "showTitle": true }
      },
      "mappings": [
        { "id": "…", "type": "folder", "value": "/Projects", "includeSubfolders": true },
        { "id": "…", "type": "tag", "value": "project" },
        { "id": "…", "type": "date", "dateRange": { "start": "2025-01-01T00:00:00Z", "end": "2025-12-31T00:00:00Z" } },
        { "id": "…", "type": "property", "property": { "name": "status", "value": "active" } }
      ]
    }
  ],
  "priorityList": ["mapping-id-1", "mapping-id-2"],
  "defaultPresetId": "4f8a1c32-…"
}
` + "```" + `

## Mapping rules

1. **Exactly one variant per mapping.** The ` + "`" + `type` + "`" + ` field names it:
   ` + "`" + `folder` + "`" + `, ` + "`" + `tag` + "`" + `, ` + "`" + `date` + "`" + `, or ` + "`" + `property` + "`" + `.
2. **Folder paths** start with ` + "`" + `/` + "`" + ` and use forward slashes.
   ` + "`" + `includeSubfolders` + "`" + ` extends the match to everything below the path.
   Matching is per path segment: ` + "`" + `/Proj` + "`" + ` never matches ` + "`" + `/Projects` + "`" + `.
3. **Tag values** carry no ` + "`" + `#` + "`" + ` prefix and match case-sensitively.
4. **Date ranges** are inclusive at both ends, compare against the note's
   created date, and work at calendar-day granularity: time-of-day on the
   boundaries is ignored.
5. **Property rules** match a frontmatter key whose value equals
   ` + "`" + `value` + "`" + ` exactly (string comparison, no type coercion).
6. **Mapping ids are globally unique** across all presets; a document that
   reuses an id is rejected on import.

## Resolution order

1. A mapping listed in ` + "`" + `priorityList` + "`" + ` beats every unlisted one; among
   listed mappings the earlier entry wins.
2. Otherwise the most specific match wins: a deeper folder beats a
   shallower one, and any folder beats tag, date, and property matches.
3. When nothing matches, ` + "`" + `defaultPresetId` + "`" + ` applies.
`
