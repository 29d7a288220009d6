package fixer

import (
	"github.com/FocuswithJustin/legacyfix/core/legacy"
	"github.com/FocuswithJustin/legacyfix/core/nbt"
	"github.com/FocuswithJustin/legacyfix/core/text"
)

var shulkerBoxColors = [16]string{
	"minecraft:white_shulker_box", "minecraft:orange_shulker_box",
	"minecraft:magenta_shulker_box", "minecraft:light_blue_shulker_box",
	"minecraft:yellow_shulker_box", "minecraft:lime_shulker_box",
	"minecraft:pink_shulker_box", "minecraft:gray_shulker_box",
	"minecraft:silver_shulker_box", "minecraft:cyan_shulker_box",
	"minecraft:purple_shulker_box", "minecraft:blue_shulker_box",
	"minecraft:brown_shulker_box", "minecraft:green_shulker_box",
	"minecraft:red_shulker_box", "minecraft:black_shulker_box",
}

var potionItems = map[string]bool{
	"minecraft:potion":           true,
	"minecraft:splash_potion":    true,
	"minecraft:lingering_potion": true,
	"minecraft:tipped_arrow":     true,
}

func (e *Engine) itemConverters() []Converter {
	return []Converter{
		NewConverter(102, e.convertMaterialID),
		NewConverter(102, e.convertPotionID),
		NewConverter(105, e.convertSpawnEgg),
		NewConverter(165, convertBookPages),
		NewConverter(502, convertCookedFish),
		NewConverter(804, convertBanner),
		NewConverter(806, convertPotionWater),
		NewConverter(813, convertShulkerBoxItem),
		NewConverter(820, convertTotem),
		NewConverter(1125, convertBedItem),
	}
}

// itemValueConverters are the item converters that apply to a bare item
// identifier as well as to a full stack.
func (e *Engine) itemValueConverters() []ValueConverter {
	return []ValueConverter{
		NewValueConverter(102, func(id string) string {
			if n, ok := numericID(id); ok {
				if name, ok := e.tables.Materials.Lookup(n); ok && n > 0 {
					return name
				}
			}
			return id
		}),
		NewValueConverter(502, func(id string) string {
			if legacy.Namespaced(id) == "minecraft:cooked_fished" {
				return "minecraft:cooked_fish"
			}
			return id
		}),
		NewValueConverter(820, func(id string) string {
			if legacy.Namespaced(id) == "minecraft:totem" {
				return "minecraft:totem_of_undying"
			}
			return id
		}),
	}
}

func numericID(s string) (int, bool) {
	if s == "" || len(s) > 5 {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// convertMaterialID replaces a numeric item id with its name.
func (e *Engine) convertMaterialID(doc *nbt.Document) *nbt.Document {
	if !doc.HasNumber("id") {
		return doc
	}
	id, _ := doc.GetShort("id")
	if id <= 0 {
		return doc
	}
	if name, ok := e.tables.Materials.Lookup(int(id)); ok {
		doc.PutString("id", name)
	}
	return doc
}

// convertPotionID moves the potion type out of the damage value into the
// Potion tag and turns splash bits into the splash item.
func (e *Engine) convertPotionID(doc *nbt.Document) *nbt.Document {
	if doc.GetStringOr("id", "") != "minecraft:potion" {
		return doc
	}
	tag := doc.GetDocumentOrEmpty("tag")
	damage := doc.GetShortOr("Damage", 0)
	if !tag.HasType("Potion", nbt.TagString) {
		potion, ok := e.tables.Potions.Lookup(int(damage & 127))
		if !ok {
			potion = "minecraft:water"
		}
		tag.PutString("Potion", potion)
		doc.PutDocument("tag", tag)
		if damage&16384 == 16384 {
			doc.PutString("id", "minecraft:splash_potion")
		}
	}
	if damage != 0 {
		doc.PutShort("Damage", 0)
	}
	return doc
}

// convertSpawnEgg moves the entity type out of the damage value into
// tag.EntityTag.id.
func (e *Engine) convertSpawnEgg(doc *nbt.Document) *nbt.Document {
	if doc.GetStringOr("id", "") != "minecraft:spawn_egg" {
		return doc
	}
	tag := doc.GetDocumentOrEmpty("tag")
	entityTag := tag.GetDocumentOrEmpty("EntityTag")
	damage := doc.GetShortOr("Damage", 0)
	if !entityTag.HasType("id", nbt.TagString) {
		if name, ok := e.tables.SpawnEggs.Lookup(int(damage & 255)); ok {
			entityTag.PutString("id", name)
			tag.PutDocument("EntityTag", entityTag)
			doc.PutDocument("tag", tag)
		}
	}
	if damage != 0 {
		doc.PutShort("Damage", 0)
	}
	return doc
}

func convertBookPages(doc *nbt.Document) *nbt.Document {
	if doc.GetStringOr("id", "") != "minecraft:written_book" {
		return doc
	}
	tag := doc.GetDocumentOrEmpty("tag")
	pages, ok := tag.GetList("pages")
	if !ok {
		return doc
	}
	for i := 0; i < pages.Len(); i++ {
		pages.Set(i, nbt.String(text.ConvertLegacy(pages.GetString(i))))
	}
	return doc
}

func convertCookedFish(doc *nbt.Document) *nbt.Document {
	if id, ok := doc.GetString("id"); ok && legacy.Namespaced(id) == "minecraft:cooked_fished" {
		doc.PutString("id", "minecraft:cooked_fish")
	}
	return doc
}

// convertBanner moves the banner base color into the damage value.
func convertBanner(doc *nbt.Document) *nbt.Document {
	if doc.GetStringOr("id", "") != "minecraft:banner" {
		return doc
	}
	tag := doc.GetDocumentOrEmpty("tag")
	blockEntity := tag.GetDocumentOrEmpty("BlockEntityTag")
	base, ok := blockEntity.GetShort("Base")
	if !ok {
		return doc
	}
	doc.PutShort("Damage", base&15)

	// Items shown with a "(+NBT)" lore line keep their tag as is.
	if display, ok := tag.GetDocument("display"); ok {
		if lore, ok := display.GetList("Lore"); ok && lore.Len() == 1 && lore.GetString(0) == "(+NBT)" {
			return doc
		}
	}

	blockEntity.Remove("Base")
	if blockEntity.IsEmpty() {
		tag.Remove("BlockEntityTag")
	}
	if tag.IsEmpty() {
		doc.Remove("tag")
	}
	return doc
}

func convertPotionWater(doc *nbt.Document) *nbt.Document {
	if !potionItems[doc.GetStringOr("id", "")] {
		return doc
	}
	tag := doc.GetDocumentOrEmpty("tag")
	if !tag.HasType("Potion", nbt.TagString) {
		tag.PutString("Potion", "minecraft:water")
	}
	if !doc.HasType("tag", nbt.TagCompound) {
		doc.PutDocument("tag", tag)
	}
	return doc
}

// convertShulkerBoxItem turns the shulker box color into a per-color item
// id and drops an empty inventory.
func convertShulkerBoxItem(doc *nbt.Document) *nbt.Document {
	if doc.GetStringOr("id", "") != "minecraft:shulker_box" {
		return doc
	}
	tag, ok := doc.GetDocument("tag")
	if !ok {
		return doc
	}
	blockEntity, ok := tag.GetDocument("BlockEntityTag")
	if !ok {
		return doc
	}
	if items, ok := blockEntity.GetList("Items"); !ok || items.Len() == 0 {
		blockEntity.Remove("Items")
	}
	color := blockEntity.GetIntOr("Color", 0)
	blockEntity.Remove("Color")
	if blockEntity.IsEmpty() {
		tag.Remove("BlockEntityTag")
	}
	if tag.IsEmpty() {
		doc.Remove("tag")
	}
	doc.PutString("id", shulkerBoxColors[((color%16)+16)%16])
	return doc
}

func convertTotem(doc *nbt.Document) *nbt.Document {
	if doc.GetStringOr("id", "") == "minecraft:totem" {
		doc.PutString("id", "minecraft:totem_of_undying")
	}
	return doc
}

func convertBedItem(doc *nbt.Document) *nbt.Document {
	if doc.GetStringOr("id", "") == "minecraft:bed" && doc.GetShortOr("Damage", 0) == 0 {
		doc.PutShort("Damage", 14)
	}
	return doc
}
